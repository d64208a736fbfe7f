package types

// ServerConf 描述监听端口与运行模式
type ServerConf struct {
	Port int    `ini:"port"`
	Mode string `ini:"mode"` // "tcp" (默认) 或 "tls"
}

// TLSConf 包含 TLS 变体的证书与协议版本策略
type TLSConf struct {
	CertFile     string `ini:"cert_file"`
	KeyFile      string `ini:"key_file"`
	MinVersion   string `ini:"min_version"` // "1.0" .. "1.3", 留空使用平台默认值
	MaxVersion   string `ini:"max_version"`
	CipherSuites string `ini:"cipher_suites"` // 以冒号分隔的 Go 套件名称
	KeyLog       string `ini:"key_log"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是 echoserver 的统一配置结构体
type Config struct {
	ServerConf `ini:"server"`
	TLSConf    `ini:"tls"`
	LogConf    `ini:"log"`
}

const (
	ModeTCP = "tcp"
	ModeTLS = "tls"

	DefaultCertFile = "server.crt"
	DefaultKeyFile  = "server.key"
)

// NewDefaultConfig 返回未指定端口的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		ServerConf: ServerConf{Port: -1, Mode: ModeTCP},
		TLSConf: TLSConf{
			CertFile: DefaultCertFile,
			KeyFile:  DefaultKeyFile,
		},
		LogConf: LogConf{Level: "info"},
	}
}

// ValidMode reports whether the mode names a known variant.
func (c *Config) ValidMode() bool {
	return c.ServerConf.Mode == ModeTCP || c.ServerConf.Mode == ModeTLS
}

// IsTLS reports whether the server wraps the accepted connection in TLS.
func (c *Config) IsTLS() bool {
	return c.ServerConf.Mode == ModeTLS
}
