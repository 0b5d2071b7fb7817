package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/appleboy/gin-jwt/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type AppRuntime struct {
	Host string

	ServiceName           string
	ServiceVersion        string
	DeploymentEnvironment string

	Store          string
	DatabaseDriver string
	DatabaseDSN    string
	DatabaseClient *gorm.DB
	MongoURI       string
	MongoDatabase  string
	MongoClient    *mongo.Client

	JaegerEndpoint  string
	MetricsExporter string
	MetricsEndpoint string
	Insecure        bool

	PaymentProvider   string
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	PayPalClientID    string
	PayPalSecret      string
	PayPalSandbox     bool
	Currency          string
	MinDonation       int64
	ProviderTimeout   time.Duration

	CorsOrigins []string

	PostmarkToken string
	EmailSender   string
	SQSQueueURL   string
	AWSRegion     string
	AWSAccessKey  string
	AWSSecretKey  string

	Diagnostic *AppDiagnostic

	Context context.Context

	Realm       string
	IdentityKey string
	SecretKey   []byte
	JWT         *jwt.GinJWTMiddleware
}

// LoadConfig reads .env.<API_ENV> and lets the process environment
// override it. A missing env file is not an error.
func LoadConfig() (*AppRuntime, error) {
	appEnv := os.Getenv("API_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	env, err := godotenv.Read(".env." + appEnv)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading .env.%s: %w", appEnv, err)
		}
		log.Warn().Str("env", appEnv).Msg("no env file, using process environment only")
		env = map[string]string{}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return ParseConfig(env)
}

func ParseConfig(env map[string]string) (*AppRuntime, error) {
	get := func(key, def string) string {
		if v, ok := env[key]; ok && v != "" {
			return v
		}
		return def
	}

	art := &AppRuntime{
		Host: get("HOST", ":8080"),

		ServiceName:           get("SERVICE_NAME", "chai-api"),
		ServiceVersion:        get("SERVICE_VERSION", "dev"),
		DeploymentEnvironment: get("DEPLOY_ENV", "development"),

		Store:          get("STORE", "gorm"),
		DatabaseDriver: get("DATABASE_DRIVER", "mysql"),
		DatabaseDSN:    env["DATABASE_DSN"],
		MongoURI:       env["MONGO_URI"],
		MongoDatabase:  get("MONGO_DATABASE", "chai"),

		JaegerEndpoint:  env["JAEGER_ENDPOINT"],
		MetricsExporter: get("METRICS_EXPORTER", "prometheus"),
		MetricsEndpoint: env["METRICS_ENDPOINT"],
		Insecure:        cast.ToBool(env["INSECURE"]),

		PaymentProvider:   get("PAYMENT_PROVIDER", "razorpay"),
		RazorpayKeyID:     env["RAZORPAY_KEY_ID"],
		RazorpayKeySecret: env["RAZORPAY_KEY_SECRET"],
		RazorpayBaseURL:   env["RAZORPAY_BASE_URL"],
		PayPalClientID:    env["PAYPAL_CLIENT_ID"],
		PayPalSecret:      env["PAYPAL_CLIENT_SECRET"],
		PayPalSandbox:     cast.ToBool(get("PAYPAL_SANDBOX", "true")),
		Currency:          strings.ToUpper(get("PAYMENT_CURRENCY", "INR")),
		MinDonation:       cast.ToInt64(get("MIN_DONATION", "10")),
		ProviderTimeout:   cast.ToDuration(get("PROVIDER_TIMEOUT", "5s")),

		PostmarkToken: env["POSTMARK_SERVER_TOKEN"],
		EmailSender:   env["EMAIL_SENDER"],
		SQSQueueURL:   env["SQS_QUEUE_URL"],
		AWSRegion:     get("AWS_REGION", "ap-south-1"),
		AWSAccessKey:  env["AWS_ACCESS_KEY_ID"],
		AWSSecretKey:  env["AWS_SECRET_ACCESS_KEY"],

		Realm:       get("SEC_JWT_REALM", "chai"),
		IdentityKey: get("SEC_JWT_IDENTITY_KEY", "userId"),
		SecretKey:   []byte(env["SEC_JWT_SECRET_KEY"]),
	}

	for _, origin := range strings.Split(get("CORS_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			art.CorsOrigins = append(art.CorsOrigins, origin)
		}
	}

	if err := art.validate(); err != nil {
		return nil, err
	}

	diag, err := NewDiagnostic(art.ServiceName)
	if err != nil {
		return nil, err
	}
	art.Diagnostic = diag

	return art, nil
}

func (art *AppRuntime) validate() error {
	var errs []error
	if len(art.SecretKey) == 0 {
		errs = append(errs, errors.New("SEC_JWT_SECRET_KEY is required"))
	}

	switch art.PaymentProvider {
	case "razorpay":
		if art.RazorpayKeyID == "" || art.RazorpayKeySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required"))
		}
	case "paypal":
		if art.PayPalClientID == "" || art.PayPalSecret == "" {
			errs = append(errs, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", art.PaymentProvider))
	}

	switch art.Store {
	case "gorm":
		if art.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required"))
		}
	case "mongo":
		if art.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE %q", art.Store))
	}

	if art.MinDonation <= 0 {
		errs = append(errs, errors.New("MIN_DONATION must be positive"))
	}

	return errors.Join(errs...)
}

func (art *AppRuntime) Production() bool {
	return art.DeploymentEnvironment == "production"
}

// SigningSecret is the key checkout callbacks are signed with. PayPal does
// not sign callbacks, so it has none.
func (art *AppRuntime) SigningSecret() string {
	if art.PaymentProvider == "paypal" {
		return ""
	}
	return art.RazorpayKeySecret
}
