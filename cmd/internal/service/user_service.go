package service

import (
	"ecare/cmd/internal/domain/entity"
	cognitoclient "ecare/cmd/internal/integration/aws/cognito"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"errors"
	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
)

type UserRepository interface {
	FindByID(id int) (*entity.User, error)
	FindBySub(sub string) (*entity.User, error)
	FindAll() ([]*entity.User, error)
	FindDoctors(specialty string) ([]*entity.User, error)
	FindByEmail(email string) (*entity.User, error)
	ExistsByEmail(email string) (bool, error)
	Save(user *entity.User) error
}

type CreateUserRequest struct {
	Username  string  `json:"username" validate:"required,min=2,max=80"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=64,hasspecial,hasdigit,hasupper,haslower"`
	Specialty *string `json:"specialty" validate:"omitempty,max=80"`
	ClinicID  *int    `json:"clinic_id" validate:"omitempty,min=1"`
}

type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64"`
}

type ConfirmSignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=1,max=6"`
}

type UserResponse struct {
	ID        int     `json:"id"`
	Username  string  `json:"username"`
	Role      string  `json:"role"`
	IsAdmin   bool    `json:"is_admin"`
	Specialty *string `json:"specialty,omitempty"`
	ClinicID  *int    `json:"clinic_id,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// UserLoginResponse carries the Cognito tokens plus who signed in, so the
// app can open the patient or the doctor home without another request.
type UserLoginResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int32  `json:"expires_in"`
	UserID       int    `json:"user_id"`
	Role         string `json:"role"`
}

type DefaultUserService struct {
	UserRepo UserRepository
	Validate *validator.Validate
	Cognito  cognitoclient.CognitoInterface
}

func NewUserService(userRepo UserRepository, validate *validator.Validate, cogClient cognitoclient.CognitoInterface) *DefaultUserService {
	return &DefaultUserService{UserRepo: userRepo, Validate: validate, Cognito: cogClient}
}

// Cognito error codes we can explain to the caller, per flow. Anything else
// is logged and reported as an internal error.
var (
	signupErrors = map[string]apierror.ErrorResponse{
		"InvalidPasswordException": apierror.IDPInvalidPasswordError,
		"UsernameExistsException":  apierror.IDPExistingEmailError,
	}
	signinErrors = map[string]apierror.ErrorResponse{
		"UserNotFoundException":     apierror.IDPUserNotFoundError,
		"UserNotConfirmedException": apierror.IDPUserNotConfirmedError,
		"NotAuthorizedException":    apierror.IDPCredentialsMismatchError,
	}
	confirmErrors = map[string]apierror.ErrorResponse{
		"CodeMismatchException": apierror.IDPConfirmCodeMismatchError,
		"ExpiredCodeException":  apierror.IDPConfirmCodeExpiredError,
		"UserNotFoundException": apierror.IDPUserNotFoundError,
	}
)

func (u *DefaultUserService) GetUsers() ([]*UserResponse, apierror.ErrorResponse) {
	users, err := u.UserRepo.FindAll()
	if err != nil {
		log.Errorf("failed to fetch all users: %v", err)
		return nil, apierror.InternalServerError
	}
	return toUserResponses(users), nil
}

// GetUser resolves "@me" to the caller and anything else to a numeric id.
func (u *DefaultUserService) GetUser(rawId, subId string) (*UserResponse, apierror.ErrorResponse) {
	var (
		user *entity.User
		err  error
	)
	if rawId == "@me" {
		user, err = u.UserRepo.FindBySub(subId)
	} else {
		id, convErr := strconv.Atoi(rawId)
		if convErr != nil {
			return nil, apierror.NewInvalidParamTypeError("id", "int32")
		}
		user, err = u.UserRepo.FindByID(id)
	}
	if err != nil {
		log.Errorf("failed to find user %s: %v", rawId, err)
		return nil, apierror.InternalServerError
	}

	if user == nil {
		return nil, apierror.NotFoundError
	}
	return toUserResponse(user), nil
}

func (u *DefaultUserService) GetDoctors(specialty string) ([]*UserResponse, apierror.ErrorResponse) {
	doctors, err := u.UserRepo.FindDoctors(strings.TrimSpace(specialty))
	if err != nil {
		log.Errorf("failed to fetch doctors (specialty %q): %v", specialty, err)
		return nil, apierror.InternalServerError
	}
	return toUserResponses(doctors), nil
}

func (u *DefaultUserService) GetDoctor(id int) (*UserResponse, apierror.ErrorResponse) {
	doctor, err := u.UserRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to find doctor (%d): %v", id, err)
		return nil, apierror.InternalServerError
	}

	if doctor == nil || !doctor.IsDoctor() {
		return nil, apierror.NotFoundError
	}
	return toUserResponse(doctor), nil
}

// CreateUser registers a patient or a doctor with Cognito and stores the
// local row. Doctors must name their specialty; patients never carry one.
// Cognito sends the verification code to the email address.
func (u *DefaultUserService) CreateUser(req *CreateUserRequest, role entity.Role) apierror.ErrorResponse {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}

	user := &entity.User{Username: req.Username, Email: req.Email, Role: role}
	switch role {
	case entity.RoleDoctor:
		if req.Specialty == nil || strings.TrimSpace(*req.Specialty) == "" {
			return apierror.DoctorSpecialtyRequiredError
		}
		specialty := strings.TrimSpace(*req.Specialty)
		user.Specialty = &specialty
		user.ClinicID = req.ClinicID
	case entity.RolePatient:
	default:
		return apierror.ForbiddenError
	}

	found, err := u.UserRepo.ExistsByEmail(req.Email)
	if err != nil {
		log.Errorf("failed to check if %s %s already exists: %v", role, req.Email, err)
		return apierror.InternalServerError
	}
	if found {
		return apierror.UserAlreadyExistsError
	}

	sub, err := u.Cognito.SignUp(&cognitoclient.User{Email: req.Email, Password: req.Password, Role: string(role)})
	if err != nil {
		return idpError("sign up "+string(role), req.Email, err, signupErrors)
	}

	now := utils.NowUTC()
	user.SubUUID = sub
	user.CreatedAt, user.UpdatedAt = now, now
	if err := u.UserRepo.Save(user); err != nil {
		log.Errorf("failed to save %s %s: %v", role, req.Email, err)
		// Without the local row the Cognito account is unusable.
		if err := u.Cognito.AdminDeleteUser(req.Email); err != nil {
			log.Errorf("failed to revert sign up of %s: %v", req.Email, err)
		}
		return apierror.InternalServerError
	}
	return nil
}

func (u *DefaultUserService) Login(req *UserLoginRequest) (*UserLoginResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	user, apierr := u.findByEmail(req.Email)
	if apierr != nil {
		return nil, apierr
	}

	auth, err := u.Cognito.SignIn(&cognitoclient.UserLogin{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, idpError("sign in", req.Email, err, signinErrors)
	}
	return &UserLoginResponse{
		AccessToken:  auth.AccessToken,
		IDToken:      auth.IDToken,
		RefreshToken: auth.RefreshToken,
		ExpiresIn:    auth.ExpiresIn,
		UserID:       user.ID,
		Role:         string(user.Role),
	}, nil
}

func (u *DefaultUserService) ConfirmSignup(req *ConfirmSignupRequest) apierror.ErrorResponse {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}

	user, apierr := u.findByEmail(req.Email)
	if apierr != nil {
		return apierr
	}
	if user.EmailVerified {
		return apierror.UserAlreadyConfirmedError
	}

	if err := u.Cognito.ConfirmAccount(&cognitoclient.UserConfirmation{Email: req.Email, Code: req.Code}); err != nil {
		return idpError("confirm", req.Email, err, confirmErrors)
	}

	user.EmailVerified = true
	user.UpdatedAt = utils.NowUTC()
	if err := u.UserRepo.Save(user); err != nil {
		log.Errorf("failed to mark user %d as verified: %v", user.ID, err)
	}
	return nil
}

// findByEmail loads a registered user; an unknown address is reported the
// way Cognito would report it.
func (u *DefaultUserService) findByEmail(email string) (*entity.User, apierror.ErrorResponse) {
	user, err := u.UserRepo.FindByEmail(email)
	if err != nil {
		log.Errorf("failed to fetch user %s: %v", email, err)
		return nil, apierror.InternalServerError
	}
	if user == nil {
		return nil, apierror.IDPUserNotFoundError
	}
	return user, nil
}

func idpError(action, email string, err error, known map[string]apierror.ErrorResponse) apierror.ErrorResponse {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		log.Errorf("failed to %s %s: %v", action, email, err)
		return apierror.InternalServerError
	}
	if apierr, ok := known[apiErr.ErrorCode()]; ok {
		return apierr
	}
	log.Errorf("cognito refused to %s %s: %s - %s", action, email, apiErr.ErrorCode(), apiErr.ErrorMessage())
	return apierror.InternalServerError
}

func toUserResponses(users []*entity.User) []*UserResponse {
	resp := make([]*UserResponse, len(users))
	for i, user := range users {
		resp[i] = toUserResponse(user)
	}
	return resp
}

func toUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		IsAdmin:   user.IsAdmin(),
		Specialty: user.Specialty,
		ClinicID:  user.ClinicID,
		CreatedAt: utils.FormatEpoch(user.CreatedAt),
		UpdatedAt: utils.FormatEpoch(user.UpdatedAt),
	}
}
