package config

import (
	"fmt"
	"os"
	"strconv"

	"echofixture/internal/shared/types"
	"gopkg.in/ini.v1"
)

// LoadIni 加载 echoserver.ini 配置文件，并应用环境变量覆盖。
// fileName 为空时只应用环境变量。
func LoadIni(cfg *types.Config, fileName string) error {
	if fileName != "" {
		iniFile, err := ini.Load(fileName)
		if err != nil {
			return fmt.Errorf("failed to load config file '%s': %w", fileName, err)
		}
		if err := iniFile.MapTo(cfg); err != nil {
			return fmt.Errorf("failed to map config file '%s': %w", fileName, err)
		}
	}
	overrideFromEnvInt(&cfg.ServerConf.Port, "ECHO_PORT")
	overrideFromEnvString(&cfg.TLSConf.CertFile, "ECHO_TLS_CERT")
	overrideFromEnvString(&cfg.TLSConf.KeyFile, "ECHO_TLS_KEY")
	return nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
