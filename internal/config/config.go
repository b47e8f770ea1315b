package config

import (
	"os"

	"github.com/go-yaml/yaml"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
)

type Config struct {
	Gateway domain.Config `yaml:"gateway"`
	Server  Server        `yaml:"server"`
}

type Server struct {
	ListenAddr       string `yaml:"listenAddr"`
	PostgresDsn      string `yaml:"postgresDsn"`
	RedisAddr        string `yaml:"redisAddr"`
	RedisDB          int    `yaml:"redisDB"`
	MemcachedAddr    string `yaml:"memcachedAddr"`
	LedgerAuthority  string `yaml:"ledgerAuthority"`
	ContentStoreAddr string `yaml:"contentStoreAddr"`
	EnableTrace      bool   `yaml:"enableTrace"`
	TraceEndpoint    string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	account, err := doci.PrivKeyToAccount(config.Gateway.PrivateKey, doci.ServiceHRP)
	if err != nil {
		return Config{}, err
	}
	config.Gateway.GatewayAccount = account

	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = ":8000"
	}

	return config, nil
}
