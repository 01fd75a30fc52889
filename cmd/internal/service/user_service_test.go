package service

import (
	"ecare/cmd/internal/domain/entity"
	cognitoclient "ecare/cmd/internal/integration/aws/cognito"
	"ecare/cmd/internal/utils/apierror"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognito struct {
	signUpErr  error
	signInErr  error
	confirmErr error
	deleted    []string
}

func (f *fakeCognito) SignUp(user *cognitoclient.User) (string, error) {
	if f.signUpErr != nil {
		return "", f.signUpErr
	}
	return "sub-" + user.Email, nil
}

func (f *fakeCognito) SignIn(*cognitoclient.UserLogin) (*cognitoclient.AuthCreate, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &cognitoclient.AuthCreate{AccessToken: "access", IDToken: "id", ExpiresIn: 3600}, nil
}

func (f *fakeCognito) ConfirmAccount(*cognitoclient.UserConfirmation) error {
	return f.confirmErr
}

func (f *fakeCognito) AdminDeleteUser(email string) error {
	f.deleted = append(f.deleted, email)
	return nil
}

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestCreateUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, newValidate(), &fakeCognito{})

	specialty := "cardiology"
	padded := " cardiology "
	req := &CreateUserRequest{Username: " Greg ", Email: "greg@clinic.test", Password: "Secr3t!pass", Specialty: &padded}
	require.Nil(t, svc.CreateUser(req, entity.RoleDoctor))

	user, _ := repo.FindByEmail("greg@clinic.test")
	require.NotNil(t, user)
	assert.Equal(t, "Greg", user.Username)
	assert.Equal(t, "sub-greg@clinic.test", user.SubUUID)
	assert.Equal(t, entity.RoleDoctor, user.Role)
	assert.Equal(t, &specialty, user.Specialty)
	assert.False(t, user.EmailVerified)

	patientReq := &CreateUserRequest{Username: "Pat", Email: "pat@clinic.test", Password: "Secr3t!pass", Specialty: &specialty}
	require.Nil(t, svc.CreateUser(patientReq, entity.RolePatient))
	patient, _ := repo.FindByEmail("pat@clinic.test")
	assert.Nil(t, patient.Specialty)

	assert.Equal(t, apierror.UserAlreadyExistsError, svc.CreateUser(req, entity.RoleDoctor))
}

func TestCreateDoctorRequiresSpecialty(t *testing.T) {
	cognito := &fakeCognito{}
	repo := newFakeUserRepo()
	svc := NewUserService(repo, newValidate(), cognito)

	blank := "  "
	for _, specialty := range []*string{nil, &blank} {
		req := &CreateUserRequest{Username: "Greg", Email: "greg@clinic.test", Password: "Secr3t!pass", Specialty: specialty}
		assert.Equal(t, apierror.DoctorSpecialtyRequiredError, svc.CreateUser(req, entity.RoleDoctor))
	}
	assert.Empty(t, repo.users)

	req := &CreateUserRequest{Username: "Root", Email: "root@clinic.test", Password: "Secr3t!pass"}
	assert.Equal(t, apierror.ForbiddenError, svc.CreateUser(req, entity.RoleAdmin))
}

type failingSaveRepo struct {
	*fakeUserRepo
}

func (failingSaveRepo) Save(*entity.User) error { return errors.New("disk full") }

func TestCreateUserRevertsCognitoOnSaveFailure(t *testing.T) {
	cognito := &fakeCognito{}
	svc := NewUserService(failingSaveRepo{newFakeUserRepo()}, newValidate(), cognito)

	req := &CreateUserRequest{Username: "Pat", Email: "pat@clinic.test", Password: "Secr3t!pass"}
	assert.Equal(t, apierror.InternalServerError, svc.CreateUser(req, entity.RolePatient))
	assert.Equal(t, []string{"pat@clinic.test"}, cognito.deleted)
}

func TestCreateUserRejections(t *testing.T) {
	weak := &CreateUserRequest{Username: "Pat", Email: "pat@clinic.test", Password: "password"}
	apierr := NewUserService(newFakeUserRepo(), newValidate(), &fakeCognito{}).CreateUser(weak, entity.RolePatient)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	ok := &CreateUserRequest{Username: "Pat", Email: "pat@clinic.test", Password: "Secr3t!pass"}
	for code, want := range map[string]apierror.ErrorResponse{
		"UsernameExistsException":  apierror.IDPExistingEmailError,
		"InvalidPasswordException": apierror.IDPInvalidPasswordError,
		"TooManyRequestsException": apierror.InternalServerError,
	} {
		svc := NewUserService(newFakeUserRepo(), newValidate(), &fakeCognito{signUpErr: apiErr(code)})
		assert.Equal(t, want, svc.CreateUser(ok, entity.RolePatient), code)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo(&entity.User{ID: 1, Email: "pat@clinic.test", SubUUID: "sub-1", Role: entity.RolePatient})
	req := &UserLoginRequest{Email: "pat@clinic.test", Password: "Secr3t!pass"}

	resp, apierr := NewUserService(repo, newValidate(), &fakeCognito{}).Login(req)
	require.Nil(t, apierr)
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, int32(3600), resp.ExpiresIn)
	assert.Equal(t, 1, resp.UserID)
	assert.Equal(t, "patient", resp.Role)

	_, apierr = NewUserService(repo, newValidate(), &fakeCognito{signInErr: apiErr("NotAuthorizedException")}).Login(req)
	assert.Equal(t, apierror.IDPCredentialsMismatchError, apierr)

	_, apierr = NewUserService(repo, newValidate(), &fakeCognito{signInErr: apiErr("UserNotConfirmedException")}).Login(req)
	assert.Equal(t, apierror.IDPUserNotConfirmedError, apierr)

	unknown := &UserLoginRequest{Email: "who@clinic.test", Password: "Secr3t!pass"}
	_, apierr = NewUserService(repo, newValidate(), &fakeCognito{}).Login(unknown)
	assert.Equal(t, apierror.IDPUserNotFoundError, apierr)
}

func TestConfirmSignup(t *testing.T) {
	user := &entity.User{ID: 1, Email: "pat@clinic.test", SubUUID: "sub-1", Role: entity.RolePatient}
	repo := newFakeUserRepo(user)
	req := &ConfirmSignupRequest{Email: "pat@clinic.test", Code: "123456"}

	apierr := NewUserService(repo, newValidate(), &fakeCognito{confirmErr: apiErr("CodeMismatchException")}).ConfirmSignup(req)
	assert.Equal(t, apierror.IDPConfirmCodeMismatchError, apierr)
	assert.False(t, user.EmailVerified)

	svc := NewUserService(repo, newValidate(), &fakeCognito{})
	require.Nil(t, svc.ConfirmSignup(req))
	assert.True(t, user.EmailVerified)

	assert.Equal(t, apierror.UserAlreadyConfirmedError, svc.ConfirmSignup(req))
}

func TestGetUserAndDoctors(t *testing.T) {
	specialty := "dermatology"
	repo := newFakeUserRepo(
		&entity.User{ID: 1, SubUUID: "sub-1", Username: "pat", Role: entity.RolePatient},
		&entity.User{ID: 2, SubUUID: "sub-2", Username: "derm", Role: entity.RoleDoctor, Specialty: &specialty},
	)
	svc := NewUserService(repo, newValidate(), &fakeCognito{})

	me, apierr := svc.GetUser("@me", "sub-1")
	require.Nil(t, apierr)
	assert.Equal(t, 1, me.ID)

	_, apierr = svc.GetUser("abc", "sub-1")
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	_, apierr = svc.GetUser("42", "sub-1")
	assert.Equal(t, apierror.NotFoundError, apierr)

	doctors, apierr := svc.GetDoctors("dermatology")
	require.Nil(t, apierr)
	require.Len(t, doctors, 1)
	assert.Equal(t, "derm", doctors[0].Username)

	_, apierr = svc.GetDoctor(1)
	assert.Equal(t, apierror.NotFoundError, apierr)
}
