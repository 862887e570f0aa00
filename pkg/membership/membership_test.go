package membership

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/apperror"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Project{}, &model.ProjectMember{}))
	return db
}

func newUser(t *testing.T, db *gorm.DB, devType string) *model.User {
	t.Helper()
	user := model.User{
		UUID:          fmt.Sprintf("u-%s-%d", devType, userSeq(db)),
		Email:         fmt.Sprintf("user%d@test.dev", userSeq(db)),
		Password:      "x",
		FirstName:     "Test",
		LastName:      "User",
		Role:          model.RoleStudent,
		DeveloperType: devType,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func userSeq(db *gorm.DB) int64 {
	var n int64
	db.Model(&model.User{}).Count(&n)
	return n + 1
}

func newProject(t *testing.T, db *gorm.DB, creator *model.User) *model.Project {
	t.Helper()
	var n int64
	db.Model(&model.Project{}).Count(&n)
	project := model.Project{
		Name:      fmt.Sprintf("project-%d", n+1),
		Slug:      fmt.Sprintf("project-%d", n+1),
		Status:    model.ProjectDraft,
		CreatorID: creator.ID,
	}
	require.NoError(t, db.Create(&project).Error)
	return &project
}

func TestJoinFullStackTieBreaking(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	creator := newUser(t, db, "")
	project := newProject(t, db, creator)

	first, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
	require.NoError(t, err)
	assert.Equal(t, model.DevRoleFullStack, first.Role)

	// FullStack is taken, the next one covers the free split role.
	second, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
	require.NoError(t, err)
	assert.Equal(t, model.DevRoleBackEnd, second.Role)

	third, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
	require.NoError(t, err)
	assert.Equal(t, model.DevRoleFrontEnd, third.Role)

	_, err = svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestJoinFullStackTakesFrontEndWhenBackEndHeld(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	creator := newUser(t, db, "")
	project := newProject(t, db, creator)

	_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
	require.NoError(t, err)
	_, err = svc.Join(project.ID, newUser(t, db, model.DevRoleBackEnd).ID)
	require.NoError(t, err)

	member, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
	require.NoError(t, err)
	assert.Equal(t, model.DevRoleFrontEnd, member.Role)
}

func TestJoinSpecializedRoles(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	creator := newUser(t, db, "")
	project := newProject(t, db, creator)

	_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleBackEnd).ID)
	require.NoError(t, err)

	t.Run("duplicate specialized role is rejected", func(t *testing.T) {
		_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleBackEnd).ID)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("free-form roles coexist", func(t *testing.T) {
		member, err := svc.Join(project.ID, newUser(t, db, model.DevRoleDesigner).ID)
		require.NoError(t, err)
		assert.Equal(t, model.DevRoleDesigner, member.Role)
	})

	t.Run("joining twice is a conflict", func(t *testing.T) {
		user := newUser(t, db, model.DevRoleFrontEnd)
		_, err := svc.Join(project.ID, user.ID)
		require.NoError(t, err)
		_, err = svc.Join(project.ID, user.ID)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("missing developer type", func(t *testing.T) {
		user := newUser(t, db, "")
		_, err := svc.Join(project.ID, user.ID)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidArgument))
	})
}

func TestLeave(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	creator := newUser(t, db, "")
	project := newProject(t, db, creator)
	user := newUser(t, db, model.DevRoleFrontEnd)

	_, err := svc.Join(project.ID, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Leave(project.ID, user.ID))

	t.Run("leaving twice is a conflict", func(t *testing.T) {
		err := svc.Leave(project.ID, user.ID)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("role is free again", func(t *testing.T) {
		member, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFrontEnd).ID)
		require.NoError(t, err)
		assert.Equal(t, model.DevRoleFrontEnd, member.Role)
	})
}

func TestStartGating(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	creator := newUser(t, db, "")

	t.Run("blocked without development coverage", func(t *testing.T) {
		project := newProject(t, db, creator)
		_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleDesigner).ID)
		require.NoError(t, err)

		_, err = svc.Start(project.ID)
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindFailedPrecondition))
	})

	t.Run("one fullstack is enough", func(t *testing.T) {
		project := newProject(t, db, creator)
		_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFullStack).ID)
		require.NoError(t, err)

		started, err := svc.Start(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ProjectInProgress, started.Status)
	})

	t.Run("frontend plus backend is enough", func(t *testing.T) {
		project := newProject(t, db, creator)
		_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFrontEnd).ID)
		require.NoError(t, err)
		_, err = svc.Join(project.ID, newUser(t, db, model.DevRoleBackEnd).ID)
		require.NoError(t, err)

		started, err := svc.Start(project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ProjectInProgress, started.Status)
	})

	t.Run("frontend alone is not enough", func(t *testing.T) {
		project := newProject(t, db, creator)
		_, err := svc.Join(project.ID, newUser(t, db, model.DevRoleFrontEnd).ID)
		require.NoError(t, err)

		_, err = svc.Start(project.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), model.DevRoleBackEnd)
	})
}

func TestIsMemberOrCreator(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	creator := newUser(t, db, "")
	project := newProject(t, db, creator)
	member := newUser(t, db, model.DevRoleBackEnd)
	outsider := newUser(t, db, model.DevRoleFrontEnd)

	_, err := svc.Join(project.ID, member.ID)
	require.NoError(t, err)

	ok, err := svc.IsMemberOrCreator(project.ID, creator.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsMemberOrCreator(project.ID, member.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsMemberOrCreator(project.ID, outsider.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
