// Package credentials loads NNTP connection settings from a dotenv file.
// The pipeline treats them as an opaque input handed to the transmitter.
package credentials

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"upapasta/internal/services"
)

// Credentials holds the NNTP connection settings the transmitter needs.
type Credentials struct {
	Host        string
	Port        int
	Username    string
	Password    string
	SSL         bool
	Connections int
	Group       string
}

const (
	defaultPort        = 563
	defaultConnections = 50
)

// Load reads a dotenv file into Credentials. Unset optional keys fall back to
// conventional defaults (SSL on, port 563, 50 connections).
func Load(path string) (Credentials, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, services.Wrap(services.ErrConfiguration, "credentials", "read env file",
			fmt.Sprintf("cannot read %s", path), err)
	}
	return parse(values)
}

func parse(values map[string]string) (Credentials, error) {
	creds := Credentials{
		Host:        strings.TrimSpace(values["NNTP_HOST"]),
		Username:    strings.TrimSpace(values["NNTP_USER"]),
		Password:    values["NNTP_PASS"],
		Group:       strings.TrimSpace(values["USENET_GROUP"]),
		Port:        defaultPort,
		SSL:         true,
		Connections: defaultConnections,
	}

	if creds.Host == "" {
		return Credentials{}, services.Wrap(services.ErrConfiguration, "credentials", "parse env file",
			"NNTP_HOST is required", nil)
	}

	if raw := strings.TrimSpace(values["NNTP_PORT"]); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			return Credentials{}, services.Wrap(services.ErrConfiguration, "credentials", "parse env file",
				fmt.Sprintf("invalid NNTP_PORT %q", raw), nil)
		}
		creds.Port = port
	}
	if raw := strings.TrimSpace(values["NNTP_SSL"]); raw != "" {
		ssl, err := strconv.ParseBool(raw)
		if err != nil {
			return Credentials{}, services.Wrap(services.ErrConfiguration, "credentials", "parse env file",
				fmt.Sprintf("invalid NNTP_SSL %q", raw), nil)
		}
		creds.SSL = ssl
	}
	if raw := strings.TrimSpace(values["NNTP_CONNECTIONS"]); raw != "" {
		conns, err := strconv.Atoi(raw)
		if err != nil || conns < 1 {
			return Credentials{}, services.Wrap(services.ErrConfiguration, "credentials", "parse env file",
				fmt.Sprintf("invalid NNTP_CONNECTIONS %q", raw), nil)
		}
		creds.Connections = conns
	}

	return creds, nil
}
