package alert

import "context"

// Mailer is the outbound notification port. Delivery details live in
// the adapters; callers treat every send as best effort.
type Mailer interface {
	// ProjectCompleted tells the members that every task of the project
	// reached full completion.
	ProjectCompleted(ctx context.Context, recipients []string, projectName string) error
}
