// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package markitdown

import (
	"context"

	"github.com/nicholasgasior/markitdown-ocr/internal/vision"
)

// visionClient is one request-issuing handle to the remote vision model.
// *vision.Client implements it; tests substitute instrumented fakes.
type visionClient interface {
	Complete(ctx context.Context, prompt string, img vision.Image, maxTokens int) (string, error)
	Close()
}

// visionImage adapts an encoded page image to the transport payload type.
func visionImage(enc encodedImage) vision.Image {
	return vision.Image{Data: enc.data, MIMEType: enc.mimeType}
}

// ocrClientPool holds one client per credential, fixed for a pipeline run.
// It is read-only after construction and shared by all conversion tasks.
type ocrClientPool struct {
	clients []visionClient
}

func newOCRClientPool(clients []visionClient) *ocrClientPool {
	return &ocrClientPool{clients: clients}
}

// newVisionPool builds a pool with one client per API key.
func newVisionPool(cfg OCRConfig) *ocrClientPool {
	clients := make([]visionClient, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		clients = append(clients, vision.NewClient(vision.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  key,
			Model:   cfg.Model,
		}))
	}
	return newOCRClientPool(clients)
}

func (p *ocrClientPool) size() int {
	return len(p.clients)
}

// clientAt returns the client for 0-based task index i, assigned round robin
// so load spreads evenly regardless of per-page latency variance.
func (p *ocrClientPool) clientAt(i int) visionClient {
	return p.clients[i%len(p.clients)]
}

// close releases every client's network resources. Called on all pipeline
// exit paths.
func (p *ocrClientPool) close() {
	for _, c := range p.clients {
		c.Close()
	}
}
