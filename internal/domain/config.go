package domain

type Config struct {
	FQDN             string `yaml:"fqdn"`
	PrivateKey       string `yaml:"privatekey"`
	Registration     string `yaml:"registration"` // open, close
	ResearcherPrefix string `yaml:"researcherPrefix"`
	GatewayAccount   string `yaml:"gatewayAccount"`
}
