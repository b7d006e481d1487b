package environment_variables

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type EnvironmentVariable struct {
	ENVIRONMENT string
	LOG_LEVEL   string
	HTTP_PORT   int

	ALLOWED_CORS_HOSTS []string
	JWT_SECRET         []byte

	CACHE_TYPE     string
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string

	DB_POSTGRESQL_WRITE_DSN string
	DB_POSTGRESQL_READ1_DSN string
	ANALYTICS_DB_DSN        string

	PERMISSION_SERVICE_URL string

	CACHE_DATA_TTL            time.Duration
	CACHE_STALENESS_THRESHOLD time.Duration
	CACHE_MAX_ENTRY_BYTES     int
	CACHE_PIPELINE_BATCH_SIZE int
	CACHE_MGET_BATCH_SIZE     int
	CACHE_TEMP_KEY_TTL        time.Duration
	CACHE_WARM_LOCK_TTL       time.Duration
	CACHE_WARM_TIMEOUT        time.Duration
	CACHE_WARM_CONCURRENCY    int
	CACHE_AUTO_WARM_COOLDOWN  time.Duration
	CACHE_MAX_TABLE_ROWS      int
	CACHE_SCHEDULER_CRON      string
	CACHE_SCHEDULER_LOCK_TTL  time.Duration
	CACHE_AUTO_WARM_DISABLED  bool

	CACHE_GLOBAL_WARM_LOCK_TTL time.Duration
}

func (ev *EnvironmentVariable) LoadFromEnv() {
	v := reflect.ValueOf(ev).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		envKey := field.Name
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setField(v.Field(i), envValue); err != nil {
			fmt.Printf("Invalid SYSENV: %s: %v\n", envKey, err)
		}
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		switch field.Type().Elem().Kind() {
		case reflect.Uint8:
			field.SetBytes([]byte(raw))
		case reflect.String:
			parts := strings.Split(raw, ",")
			values := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					values = append(values, p)
				}
			}
			field.Set(reflect.ValueOf(values))
		default:
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// Singleton
var EnvironmentVariables = EnvironmentVariable{}
