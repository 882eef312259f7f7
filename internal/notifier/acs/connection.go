package acs

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// connection holds the parsed ACS connection string parts.
type connection struct {
	// endpoint is the resource endpoint, e.g. https://name.communication.azure.com.
	endpoint *url.URL
	// accessKey is the decoded shared key used for request signing.
	accessKey []byte
}

var (
	// errConnectionStringEmpty is returned for a missing connection string.
	errConnectionStringEmpty = errors.New("connection string must be provided")
	// errConnectionStringMalformed is returned when endpoint or accesskey is absent.
	errConnectionStringMalformed = errors.New("connection string must contain endpoint and accesskey")
)

// parseConnectionString parses the "endpoint=https://...;accesskey=..." form
// the Azure portal hands out.
func parseConnectionString(raw string) (*connection, error) {
	if raw == "" {
		return nil, errConnectionStringEmpty
	}

	var (
		endpoint  string
		accessKey string
	)

	for _, part := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "endpoint":
			endpoint = strings.TrimSpace(value)
		case "accesskey":
			// The key is base64 and may end in '='; Cut splits on the first
			// '=' only, so the padding survives in value.
			accessKey = strings.TrimSpace(value)
		}
	}

	if endpoint == "" || accessKey == "" {
		return nil, errConnectionStringMalformed
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, errConnectionStringMalformed)
	}

	decoded, err := base64.StdEncoding.DecodeString(accessKey)
	if err != nil {
		return nil, fmt.Errorf("decode access key: %w", err)
	}

	return &connection{
		endpoint:  parsed,
		accessKey: decoded,
	}, nil
}
