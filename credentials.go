// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package bulkloader

import (
	"fmt"
	"net/url"
	"os"

	"github.com/elastic/go-elasticsearch/v8"
	"gopkg.in/yaml.v3"
)

// Credentials holds the contents of an Elasticsearch credentials file. The
// loader passes the values to the client untouched.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	APIKey   string `yaml:"api_key"`
	CACert   string `yaml:"ca_cert"`
}

// ReadCredentials reads a YAML credentials file.
func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	return creds, nil
}

// NewFromCredentials returns a Loader with its own Elasticsearch client for
// esURL, authenticated from the credentials file at credentialsPath. An
// empty credentialsPath configures an unauthenticated client.
func NewFromCredentials(esURL, index, credentialsPath string, cfg Config) (*Loader, error) {
	esCfg := elasticsearch.Config{
		Addresses:    []string{esURL},
		DisableRetry: true,
	}
	if credentialsPath != "" {
		creds, err := ReadCredentials(credentialsPath)
		if err != nil {
			return nil, err
		}
		esCfg.Username = creds.Username
		esCfg.Password = creds.Password
		esCfg.APIKey = creds.APIKey
		if creds.CACert != "" {
			ca, err := os.ReadFile(creds.CACert)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}
			esCfg.CACert = ca
		}
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	l, err := New(client, index, cfg)
	if err != nil {
		return nil, err
	}
	if u, err := url.Parse(esURL); err == nil {
		l.host = u.Hostname()
	}
	return l, nil
}
