/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/timecounter/daemon"
)

// client talks to the daemon admin API
type client struct {
	address string
	c       http.Client
}

func newClient(address string) *client {
	return &client{
		address: strings.TrimSuffix(address, "/"),
		c:       http.Client{Timeout: 2 * time.Second},
	}
}

func (c *client) do(method, path string, params url.Values, v any) error {
	u := c.address + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	log.Debugf("%s %s", method, u)
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		e := &daemon.ErrorReply{}
		if err := json.Unmarshal(b, e); err != nil || e.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s", method, path, e.Error)
	}
	return json.Unmarshal(b, v)
}

func (c *client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *client) post(path string, params url.Values, v any) error {
	return c.do(http.MethodPost, path, params, v)
}
