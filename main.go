package main

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/elloello/softphone/internal/api"
	"github.com/elloello/softphone/internal/audio"
	"github.com/elloello/softphone/internal/auth"
	"github.com/elloello/softphone/internal/calling"
	"github.com/elloello/softphone/internal/config"
	"github.com/elloello/softphone/internal/model"
	"github.com/elloello/softphone/internal/recording"
	"github.com/elloello/softphone/internal/repository"
	"github.com/elloello/softphone/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Config
	config.LoadConfig()

	// 2. Init Logger
	logger.InitLogger(config.AppConfig.Log.Level)
	logger.Log.Info("Starting softphone daemon...")

	auth.SetSecret(config.AppConfig.Auth.JWTSecret)

	// 3. Init Database
	db := initDB()

	// 4. Telephony transport
	ctx := context.Background()
	tcfg := config.AppConfig.Telephony
	if tcfg.Mode != "simulated" {
		// No SDK-backed transport ships in this build; refuse to start with
		// a half-working phone rather than silently simulating.
		logger.Log.Fatalf("Unsupported telephony mode %q (only \"simulated\" is available)", tcfg.Mode)
	}
	sim := calling.NewSimulatedTransport(calling.SimulatedConfig{
		RingDelay:    config.Duration(tcfg.RingDelay, 0),
		ConnectDelay: config.Duration(tcfg.ConnectDelay, 0),
	}, logger.Log)
	if err := sim.Initialize(ctx); err != nil {
		logger.Log.Fatalf("Failed to initialize transport: %v", err)
	}
	if err := sim.RefreshAccessToken(ctx, tcfg.Identity); err != nil {
		logger.Log.Fatalf("Failed to register identity: %v", err)
	}
	defer sim.Cleanup(context.Background())

	// 5. Call engine and collaborators
	callLogRepo := repository.NewCallLogRepository(db)
	contactRepo := repository.NewContactRepository(db)
	voicemailRepo := repository.NewVoicemailRepository(db)
	recordingRepo := repository.NewRecordingRepository(db)

	mgr, err := calling.New(calling.Config{
		RingTimeout: config.Duration(tcfg.RingTimeout, 0),
		GraceDelay:  config.Duration(tcfg.GraceDelay, 0),
	}, calling.Deps{
		Transport: sim,
		Audio:     audio.NewManager(logger.Log),
		CallLog:   callLogRepo,
		Contacts:  contactRepo,
		Recorder:  recording.NewService(recordingRepo, logger.Log),
	}, logger.Log)
	if err != nil {
		logger.Log.Fatalf("Failed to build call engine: %v", err)
	}
	defer mgr.Shutdown(context.Background())

	// 6. Init Router
	if config.AppConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Setup Routes
	ch := api.NewCallHandler(mgr, sim)
	hh := api.NewHistoryHandler(callLogRepo)
	coh := api.NewContactHandler(contactRepo)
	vh := api.NewVoicemailHandler(voicemailRepo)
	uh := api.NewUserHandler(db)

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.POST("/login", uh.Login)

		// Authenticated Routes
		authGroup := apiGroup.Group("/")
		authGroup.Use(api.AuthMiddleware(db))
		{
			authGroup.POST("/change_password", uh.ChangePassword)

			authGroup.POST("/calls", ch.PlaceCall)
			authGroup.GET("/calls/current", ch.GetCurrentCall)
			authGroup.POST("/calls/accept", ch.Accept)
			authGroup.POST("/calls/reject", ch.Reject)
			authGroup.POST("/calls/end", ch.End)
			authGroup.POST("/calls/mute", ch.ToggleMute)
			authGroup.POST("/calls/hold", ch.ToggleHold)
			authGroup.POST("/calls/speaker", ch.ToggleSpeaker)
			authGroup.POST("/calls/digits", ch.SendDigits)
			authGroup.POST("/calls/recording/start", ch.StartRecording)
			authGroup.POST("/calls/recording/stop", ch.StopRecording)
			authGroup.GET("/calls/ws", ch.StreamCallState)

			authGroup.GET("/history", hh.ListHistory)
			authGroup.GET("/history/stats", hh.Stats)
			authGroup.DELETE("/history/:id", hh.DeleteEntry)

			authGroup.GET("/contacts", coh.ListContacts)
			authGroup.GET("/contacts/lookup", coh.LookupContact)
			authGroup.POST("/contacts", coh.CreateContact)
			authGroup.PUT("/contacts/:id", coh.UpdateContact)
			authGroup.DELETE("/contacts/:id", coh.DeleteContact)

			authGroup.GET("/voicemails", vh.ListVoicemails)
			authGroup.POST("/voicemails/:id/read", vh.MarkRead)
			authGroup.DELETE("/voicemails/:id", vh.DeleteVoicemail)

			// Development hook for driving the simulated transport.
			authGroup.POST("/simulate/incoming", ch.SimulateIncoming)

			// Admin Only
			adminGroup := authGroup.Group("/")
			adminGroup.Use(api.AdminOnly())
			{
				adminGroup.DELETE("/history", hh.ClearHistory)

				adminGroup.GET("/users", uh.ListUsers)
				adminGroup.POST("/users", uh.CreateUser)
				adminGroup.DELETE("/users/:id", uh.DeleteUser)
			}
		}
	}

	port := config.AppConfig.Server.Port
	logger.Log.Infof("Server listening on %s", port)
	if err := r.Run(port); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}

func initDB() *gorm.DB {
	var db *gorm.DB
	var err error

	driver := config.AppConfig.Database.Driver
	dsn := config.AppConfig.Database.DSN

	switch driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		// Default to SQLite (pure Go)
		if dsn == "" {
			dsn = "softphone.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}

	if err != nil {
		logger.Log.Fatalf("Failed to connect database (%s): %v", driver, err)
	}

	// Auto Migrate
	db.AutoMigrate(&model.User{}, &model.CallLogEntry{}, &model.Contact{},
		&model.Voicemail{}, &model.Recording{})

	// Init Admin
	var count int64
	db.Model(&model.User{}).Count(&count)
	if count == 0 {
		randPw := config.AppConfig.Users.DefaultAdminPassword
		if randPw == "" {
			const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
			ret := make([]byte, 12)
			for i := 0; i < 12; i++ {
				num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
				if err != nil {
					logger.Log.Fatalf("Failed to generate random password: %v", err)
				}
				ret[i] = chars[num.Int64()]
			}
			randPw = string(ret)
		}

		bytes, err := bcrypt.GenerateFromPassword([]byte(randPw), 14)
		if err != nil {
			logger.Log.Fatalf("Failed to hash password: %v", err)
		}

		admin := model.User{
			Username:     "admin",
			PasswordHash: string(bytes),
			Role:         "admin",
		}
		db.Create(&admin)
		logger.Log.Warnf("INITIAL ADMIN CREATED. Username: admin, Password: %s", randPw)
	}

	return db
}
