// Package sniffer validates uploaded preview payloads by magic bytes rather
// than trusting declared content types.
package sniffer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
)

var (
	ErrUnknownType = errors.New("unknown media type")
	ErrNotDataURL  = errors.New("not a data url")
	// ErrTypeMismatch means the declared MIME and the sniffed bytes disagree.
	ErrTypeMismatch = errors.New("declared type does not match content")
)

type Result struct {
	Type MediaType
	MIME string
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isJPEG(head) {
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	}
	if isPNG(head) {
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	}
	if isGIF(head) {
		return Result{Type: TypeGIF, MIME: "image/gif"}, nil
	}
	if isWEBP(head) {
		return Result{Type: TypeWEBP, MIME: "image/webp"}, nil
	}

	return Result{}, ErrUnknownType
}

// DecodeDataURL unpacks a base64 data URL and verifies the payload really is
// the image type the prefix claims.
func DecodeDataURL(raw string) ([]byte, Result, error) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, Result{}, ErrNotDataURL
	}
	comma := strings.IndexByte(raw, ',')
	if comma < 0 {
		return nil, Result{}, ErrNotDataURL
	}

	meta := raw[len("data:"):comma]
	declared := meta
	if idx := strings.IndexByte(meta, ';'); idx >= 0 {
		declared = meta[:idx]
	}
	if !strings.Contains(meta, ";base64") {
		return nil, Result{}, ErrNotDataURL
	}

	data, err := base64.StdEncoding.DecodeString(raw[comma+1:])
	if err != nil {
		return nil, Result{}, err
	}

	result, err := DetectHead(data)
	if err != nil {
		return nil, Result{}, err
	}
	if declared != "" && declared != result.MIME {
		return nil, Result{}, ErrTypeMismatch
	}
	return data, result, nil
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}
