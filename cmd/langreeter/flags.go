package main

import (
	"github.com/spf13/cobra"

	"github.com/rescp17/lanGreeter/internal/config"
)

// flagOverrides holds command line values that win over the config file
// when the user set them explicitly.
type flagOverrides struct {
	port        int
	serviceType string
	domain      string
	name        string
	greeting    string
	bindHost    string
	logFile     string
}

func (o *flagOverrides) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.IntVar(&o.port, "port", config.DefaultPort, "Port to listen on")
	flags.StringVar(&o.serviceType, "type", config.DefaultServiceType, "DNS-SD service type")
	flags.StringVar(&o.domain, "domain", config.DefaultDomain, "DNS-SD domain")
	flags.StringVar(&o.name, "name", "", "Instance name to announce (default <hostname>-<random>)")
	flags.StringVar(&o.greeting, "greeting", "", "Greeting sent to peers (default \"Hello from <hostname>!!!\")")
	flags.StringVar(&o.bindHost, "bind", "", "IP address to bind the listener to (default all interfaces)")
	flags.StringVar(&o.logFile, "log-file", config.DefaultLogFile, "Log file used while the terminal UI runs")
}

func (o *flagOverrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("type") {
		cfg.ServiceType = o.serviceType
	}
	if flags.Changed("domain") {
		cfg.Domain = o.domain
	}
	if flags.Changed("name") {
		cfg.InstanceName = o.name
	}
	if flags.Changed("greeting") {
		cfg.Greeting = o.greeting
	}
	if flags.Changed("bind") {
		cfg.BindHost = o.bindHost
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
}
