package user

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chatd/internal/chat"
)

type fakeScheduleDeleter struct {
	deletedFor []string
	err        error
}

func (f *fakeScheduleDeleter) DeleteBySender(_ context.Context, sender string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedFor = append(f.deletedFor, sender)
	return nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeScheduleDeleter) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deleter := &fakeScheduleDeleter{}
	return NewService(NewRepository(db), deleter, "test-secret"), mock, deleter
}

func TestService_RegisterHashesPassword(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	u, err := svc.Register(context.Background(), &RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.NotEqual(t, "s3cret", u.Password, "plaintext must never reach the store")
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("s3cret")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RegisterRejectsReservedUsername(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(),
		&RegisterRequest{Username: chat.PublicReceiver, Password: "x"})
	require.Error(t, err, "the public-room sentinel is not a claimable username")
}

func TestService_LoginAndValidateToken(t *testing.T) {
	svc, mock, _ := newTestService(t)

	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password FROM users")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password"}).
			AddRow(1, "alice", string(hashed)))

	res, err := svc.Login(context.Background(), &RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)

	username, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_LoginWrongPassword(t *testing.T) {
	svc, mock, _ := newTestService(t)

	hashed, _ := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password FROM users")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password"}).
			AddRow(1, "alice", string(hashed)))

	_, err := svc.Login(context.Background(), &RegisterRequest{Username: "alice", Password: "wrong"})
	require.Error(t, err)
}

func TestService_ValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ValidateToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Token signed with a different secret.
	other := NewService(nil, nil, "other-secret")
	_, err = other.ValidateToken(mustToken(t, svc))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func mustToken(t *testing.T, svc *Service) string {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password"}).
			AddRow(1, "alice", string(hashed)))

	svc.repo = NewRepository(db)
	res, err := svc.Login(context.Background(), &RegisterRequest{Username: "alice", Password: "x"})
	require.NoError(t, err)
	return res.AccessToken
}

func TestService_DeleteAccountCascadesSchedules(t *testing.T) {
	svc, mock, deleter := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.DeleteAccount(context.Background(), "alice"))
	require.Equal(t, []string{"alice"}, deleter.deletedFor)
}

func TestService_DeleteAccountUnknownUser(t *testing.T) {
	svc, mock, deleter := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.DeleteAccount(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, deleter.deletedFor, "no cascade for a user that was not deleted")
}

func TestService_DeleteAccountCascadeFailureSurfaces(t *testing.T) {
	svc, mock, deleter := newTestService(t)
	deleter.err = errors.New("storage down")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.Error(t, svc.DeleteAccount(context.Background(), "alice"))
}
