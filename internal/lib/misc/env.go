package misc

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env from the working directory.  godotenv never overrides
// variables that are already set, so real environment values win, then .env.local, then .env.
func LoadEnvSettings(logger *slog.Logger) {
	for _, name := range []string{".env.local", ".env"} {
		err := godotenv.Load(name)
		switch {
		case err == nil:
			Debugf(logger, "loaded env file:%s", name)
		case errors.Is(err, fs.ErrNotExist):
		default:
			Warnf(logger, "unable to load env file:%s, err:%v", name, err)
		}
	}
}

// LoadNamedEnvFile loads an explicitly requested env file - unlike the defaults it must exist.
func LoadNamedEnvFile(logger *slog.Logger, envFile string) error {
	Infof(logger, "loading env file:%s", envFile)
	return godotenv.Load(envFile)
}
