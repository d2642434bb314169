package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port"`
	Engine     MEngineConfig     `yaml:"engine"`
	Pipeline   MPipelineConfig   `yaml:"pipeline"`
	Storage    MStorageConfig    `yaml:"storage"`
	DataSource MDataSourceConfig `yaml:"data_source"`
}

type MEngineConfig struct {
	BarInterval   uint64 `yaml:"bar_interval"`
	TimestampUnit string `yaml:"timestamp_unit"` // s, ms, us, ns
	MaxRollover   uint64 `yaml:"max_rollover"`
	IdleTimeoutMs int    `yaml:"idle_timeout_ms"`
	Heartbeat     bool   `yaml:"heartbeat"`
}

type MPipelineConfig struct {
	TradeBuffer  int `yaml:"trade_buffer"`
	UpdateBuffer int `yaml:"update_buffer"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // none, sqlite, postgres
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MDataSourceConfig struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Symbols []string `yaml:"symbols"`
}
