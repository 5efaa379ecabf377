package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]models.Student
	deleted  []string
}

func (m *mockStudentRepo) List(ctx context.Context, search string) ([]models.Student, error) {
	students := make([]models.Student, 0, len(m.students))
	for _, student := range m.students {
		students = append(students, student)
	}
	return students, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		return &student, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	key := models.StudentKey(name)
	for _, student := range m.students {
		if models.StudentKey(student.Name) == key && student.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil, nil)

	student, err := svc.Create(context.Background(), dto.CreateStudentRequest{Name: " Lucía García ", Course: "4ºA"})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "Lucía García", student.Name)
}

func TestStudentServiceCreateDuplicateCaseInsensitive(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Lucía García", Course: "4ºA"},
	}}
	svc := NewStudentService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateStudentRequest{Name: "lucía garcía", Course: "4ºB"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Lucía García", Course: "4ºA"},
	}}
	svc := NewStudentService(repo, nil, nil, nil)

	course := "5ºA"
	updated, err := svc.Update(context.Background(), "s1", dto.UpdateStudentRequest{Course: &course})
	require.NoError(t, err)
	assert.Equal(t, "5ºA", updated.Course)
	assert.Equal(t, "Lucía García", updated.Name)
}

func TestStudentServiceUpdateRenameCollision(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Lucía García", Course: "4ºA"},
		"s2": {ID: "s2", Name: "Marcos Pérez", Course: "5ºB"},
	}}
	svc := NewStudentService(repo, nil, nil, nil)

	name := "LUCÍA GARCÍA"
	_, err := svc.Update(context.Background(), "s2", dto.UpdateStudentRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Lucía García", Course: "4ºA"},
	}}
	svc := NewStudentService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "s1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "s1")
}
