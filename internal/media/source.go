// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package media resolves submitted media into local files. This file is the
// source: it takes the opaque media token from a session, fetches the bytes
// over HTTP or from a local path, and lands them inside the session's temp
// namespace.
//
// The declared media kind is never trusted; the real content type is sniffed
// from the file header and must agree with the declared kind. Network
// failures wrap ErrTransport so the engine knows they were already worth a
// retry; disk failures wrap ErrResource and are fatal for the request.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/platewise/platewise/internal/core/model"
)

// LocalMedia is a media file resolved onto the local filesystem, ready for
// the analysis pipeline.
type LocalMedia struct {
	Path     string
	Kind     model.MediaKind
	MIMEType string
}

// Source fetches media tokens into session namespaces.
type Source struct {
	namespace *Namespace
	client    *http.Client
}

// NewSource constructs a source over the given namespace.
func NewSource(namespace *Namespace) *Source {
	return &Source{
		namespace: namespace,
		client:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Fetch resolves the media reference into a local file inside the session's
// namespace. Tokens starting with http:// or https:// are downloaded;
// anything else is treated as a local path and copied.
func (s *Source) Fetch(ctx context.Context, sessionID string, ref model.MediaRef) (*LocalMedia, error) {
	dir, err := s.namespace.Dir(sessionID)
	if err != nil {
		return nil, err
	}
	localPath := filepath.Join(dir, "media.bin")

	if strings.HasPrefix(ref.Token, "http://") || strings.HasPrefix(ref.Token, "https://") {
		err = s.download(ctx, ref.Token, localPath)
	} else {
		err = copyFile(ref.Token, localPath)
	}
	if err != nil {
		return nil, err
	}

	kind, err := sniffKind(localPath)
	if err != nil {
		return nil, err
	}
	if mediaKindOf(kind) != ref.Kind {
		return nil, fmt.Errorf("%w: submitted as %s but content is %s",
			model.ErrExtraction, ref.Kind, kind.MIME.Value)
	}

	return &LocalMedia{Path: localPath, Kind: ref.Kind, MIMEType: kind.MIME.Value}, nil
}

func (s *Source) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", model.ErrTransport, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download media: %v", model.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download media: status %d", model.ErrTransport, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create media file: %v", model.ErrResource, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("%w: write media file: %v", model.ErrTransport, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open media: %v", model.ErrTransport, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create media file: %v", model.ErrResource, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copy media file: %v", model.ErrResource, err)
	}
	return nil
}

// sniffKind reads the file header and identifies the real content type.
func sniffKind(path string) (types.Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Unknown, fmt.Errorf("%w: open media: %v", model.ErrResource, err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 261)
	n, _ := f.Read(head)

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == types.Unknown {
		return types.Unknown, fmt.Errorf("%w: unrecognized media content", model.ErrExtraction)
	}
	return kind, nil
}

func mediaKindOf(t types.Type) model.MediaKind {
	switch t.MIME.Type {
	case "image":
		return model.MediaPhoto
	case "video":
		return model.MediaVideo
	default:
		return ""
	}
}
