// Copyright 2026 The xarray-ecmwf-go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import "time"

// Config is the union of fields the three RequestClient implementations
// need, as carried by `client_kwargs` in spec.md section 6's Open
// interface. backend.Open narrows this down to the concrete per-client
// Config each constructor expects.
type Config struct {
	URL          string
	Key          string
	Source       string
	PollInterval time.Duration
}
