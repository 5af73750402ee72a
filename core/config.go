package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is set once by NewConfig at application start.
var Conf *Config

type (
	Config struct {
		AppName  string
		Env      string // DEV (default) | TEST | QA | PROD
		Debug    bool
		TestMode bool
		Build    string
		WorkDir  string

		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration

		SendgridApiKey string
		RollbarToken   string

		Server   ServerConfig
		Database DatabaseConfig
		Material MaterialConfig
		Preview  PreviewConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Path string
	}

	MaterialConfig struct {
		StorePath     string
		MaxUploadSize int64
	}

	PreviewConfig struct {
		ViewerTimeout   time.Duration
		BlobTTL         time.Duration
		MaxRetries      int
		GoogleViewerURL string
		OfficeViewerURL string
		PublicHostURL   string
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "GanpatStudy")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "t#qdz&u0xh2(h!x)#*c2(#yg4h^$cegm2emy-p0q5_w3r)3nb")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", "localhost:9000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.path", filepath.Join("data", "ganpatstudy.db"))

	v.SetDefault("material.storePath", filepath.Join("data", "materials.json"))
	v.SetDefault("material.maxUploadSize", int64(50<<20)) // 50 MiB

	v.SetDefault("preview.viewerTimeout", 20*time.Second)
	v.SetDefault("preview.blobTTL", 5*time.Minute)
	v.SetDefault("preview.maxRetries", 3)
	v.SetDefault("preview.googleViewerURL", "https://docs.google.com/viewer?embedded=true&url=")
	v.SetDefault("preview.officeViewerURL", "https://view.officeapps.live.com/op/embed.aspx?src=")
	v.SetDefault("preview.publicHostURL", "https://tempfiles.ninja/api/upload")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("env", env)
	v.SetDefault("testMode", env == "TEST")

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		Build:                     v.GetString("build"),
		WorkDir:                   wd,
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Addr:                      v.GetString("server.addr"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Material: MaterialConfig{
			StorePath:     v.GetString("material.storePath"),
			MaxUploadSize: v.GetInt64("material.maxUploadSize"),
		},
		Preview: PreviewConfig{
			ViewerTimeout:   v.GetDuration("preview.viewerTimeout"),
			BlobTTL:         v.GetDuration("preview.blobTTL"),
			MaxRetries:      v.GetInt("preview.maxRetries"),
			GoogleViewerURL: v.GetString("preview.googleViewerURL"),
			OfficeViewerURL: v.GetString("preview.officeViewerURL"),
			PublicHostURL:   v.GetString("preview.publicHostURL"),
		},
	}
	Conf = conf
	return conf
}

// Getwd tries to find the project root.
// go-test changes the working directory to the test package being run during tests;
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err = os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
