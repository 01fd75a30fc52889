package main

import (
	"context"
	"ecare/cmd/internal/auth"
	"ecare/cmd/internal/config"
	"ecare/cmd/internal/domain/sqlite"
	"ecare/cmd/internal/domain/sqlite/repository"
	cognitoclient "ecare/cmd/internal/integration/aws/cognito"
	fcmclient "ecare/cmd/internal/integration/firebase"
	"ecare/cmd/internal/metrics"
	"ecare/cmd/internal/routes"
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils/validators"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	validate := validator.New()
	validators.Register(validate)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", err)
	}

	// Init SQLite
	db, err := sqlite.Init(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get database handle", err)
	}

	// Cognito client
	cogClient, err := cognitoclient.InitCognitoClient(cognitoclient.Settings{
		Region:       cfg.AWSRegion,
		UserPoolID:   cfg.CognitoUserPoolID,
		ClientID:     cfg.CognitoClientID,
		ClientSecret: cfg.CognitoClientSecret,
	})
	if err != nil {
		log.Fatal("failed to initialize cognito client", err)
	}

	// FCM is optional; without it notifications are only stored.
	var push fcmclient.PushInterface
	if cfg.FCMProjectID != "" {
		fcm, err := fcmclient.InitFCMClient(context.Background(), cfg.FCMProjectID, cfg.FCMCredentialsFile)
		if err != nil {
			log.Fatal("failed to initialize fcm client", err)
		}
		push = fcm
	} else {
		log.Warn("FCM_PROJECT_ID is not set, push notifications are disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	// Getting repositories
	userRepo := repository.NewUserRepository(db)
	clinicRepo := repository.NewClinicRepository(db)
	avRepo := repository.NewAvailabilityRepository(db)
	apptRepo := repository.NewAppointmentRepository(db)
	prRepo := repository.NewPrescriptionRepository(db)
	medRepo := repository.NewMedicationRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// Getting services
	notifService := service.NewNotificationService(notifRepo, userRepo, validate, push)
	userService := service.NewUserService(userRepo, validate, cogClient)
	clinicService := service.NewClinicService(clinicRepo)
	avService := service.NewAvailabilityService(avRepo, apptRepo, userRepo, validate, cfg.Location)
	apptService := service.NewAppointmentService(apptRepo, userRepo, validate, notifService, bookingMetrics)
	prService := service.NewPrescriptionService(prRepo, medRepo, userRepo, validate, notifService)

	// Getting routes
	userRoutes := routes.NewUserDefault(userService)
	clinicRoutes := routes.NewClinicDefault(clinicService)
	avRoutes := routes.NewAvailabilityDefault(avService)
	apptRoutes := routes.NewAppointmentDefault(apptService)
	prRoutes := routes.NewPrescriptionDefault(prService)
	notifRoutes := routes.NewNotificationDefault(notifService)
	healthRoutes := routes.NewHealthDefault(sqlDB)

	authCfg := auth.Config{Skipper: auth.PublicSkipper}
	if cfg.JWTSecret != "" {
		authCfg.Secret = []byte(cfg.JWTSecret)
	} else {
		authCfg.JWKS = auth.NewJWKSCache(cfg.CognitoJWKSURL(), 0)
		authCfg.Issuer = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.AWSRegion, cfg.CognitoUserPoolID)
	}

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(auth.Middleware(authCfg))

	// Auth
	e.POST("/api/auth/register/patient", userRoutes.RegisterPatient)
	e.POST("/api/auth/register/doctor", userRoutes.RegisterDoctor)
	e.POST("/api/auth/login", userRoutes.CreateLogin)
	e.POST("/api/auth/verify", userRoutes.VerifySignup)

	// Users and doctors
	e.GET("/api/users", userRoutes.GetUsers)
	e.GET("/api/users/:id", userRoutes.GetUser)
	e.GET("/api/doctors", userRoutes.GetDoctors)
	e.GET("/api/doctors/:id", userRoutes.GetDoctor)
	e.GET("/api/doctors/:id/slots", avRoutes.GetSlots)
	e.GET("/api/doctors/:id/calendar", avRoutes.GetCalendar)

	// Clinics
	e.GET("/api/clinics", clinicRoutes.GetClinics)
	e.GET("/api/clinics/:id", clinicRoutes.GetClinic)

	// Availabilities
	e.GET("/api/availabilities/doctor/:id", avRoutes.GetByDoctor)
	e.PUT("/api/availabilities/doctor/:id/day", avRoutes.ReplaceDay)
	e.POST("/api/availabilities", avRoutes.CreateAvailability)
	e.PATCH("/api/availabilities/:id", avRoutes.PatchAvailability)
	e.DELETE("/api/availabilities/:id", avRoutes.DeleteAvailability)

	// Appointments
	e.POST("/api/appointments", apptRoutes.CreateAppointment)
	e.POST("/api/appointments/validate", apptRoutes.ValidateAppointment)
	e.GET("/api/appointments/doctor/:id", apptRoutes.GetDoctorAppointments)
	e.GET("/api/appointments/patient/:id", apptRoutes.GetPatientAppointments)
	e.GET("/api/appointments/:id", apptRoutes.GetAppointment)
	e.PATCH("/api/appointments/:id", apptRoutes.UpdateAppointment)
	e.DELETE("/api/appointments/:id", apptRoutes.DeleteAppointment)

	// Prescriptions and medications
	e.POST("/api/prescriptions", prRoutes.CreatePrescription)
	e.GET("/api/prescriptions/patient/:id", prRoutes.GetPatientPrescriptions)
	e.GET("/api/prescriptions/doctor/:id", prRoutes.GetDoctorPrescriptions)
	e.GET("/api/prescriptions/:id", prRoutes.GetPrescription)
	e.DELETE("/api/prescriptions/:id", prRoutes.DeletePrescription)
	e.POST("/api/prescriptions/:id/items", prRoutes.AddItem)
	e.GET("/api/medications", prRoutes.GetMedications)
	e.POST("/api/medications", prRoutes.CreateMedication)

	// Notifications
	e.GET("/api/notifications", notifRoutes.GetNotifications)
	e.POST("/api/notifications/read-all", notifRoutes.MarkAllRead)
	e.POST("/api/notifications/:id/read", notifRoutes.MarkRead)
	e.POST("/api/devices", notifRoutes.RegisterDevice)
	e.DELETE("/api/devices/:token", notifRoutes.UnregisterDevice)

	e.GET("/health", healthRoutes.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	err = e.Start(":" + cfg.Port)
	if err != nil {
		e.Logger.Fatal(err)
	}
}
