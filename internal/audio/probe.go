// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Codec represents an audio codec with its encoders and decoders
type Codec struct {
	Id       string
	Name     string
	Encoders []string
	Decoders []string
}

// Info describes the detected ffmpeg build
type Info struct {
	Binary        string
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
	Codecs        []Codec
}

// HasCodec reports whether an audio codec can be decoded (and encoded, if
// encode is true)
func (i Info) HasCodec(id string, encode bool) bool {
	for _, c := range i.Codecs {
		if c.Id != id {
			continue
		}
		if len(c.Decoders) == 0 {
			return false
		}
		return !encode || len(c.Encoders) > 0
	}
	return false
}

// Probe runs `ffmpeg -version` and `ffmpeg -codecs`
func (n *Normalizer) Probe(ctx context.Context) (Info, error) {
	binary, err := n.Binary()
	if err != nil {
		return Info{}, err
	}

	out, err := exec.CommandContext(ctx, binary, "-version").CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s -version: %v", ErrToolFailed, binary, err)
	}
	info := parseVersion(out)
	if info.Version == "" {
		return Info{}, fmt.Errorf("can't parse ffmpeg version")
	}
	info.Binary = binary

	codecs, _ := exec.CommandContext(ctx, binary, "-hide_banner", "-codecs").Output()
	info.Codecs = parseAudioCodecs(codecs)

	return info, nil
}

func parseVersion(data []byte) Info {
	f := Info{}
	reVersion := regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler := regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration := regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary := regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

// parseAudioCodecs keeps the audio rows of `ffmpeg -codecs`
func parseAudioCodecs(data []byte) []Codec {
	var codecs []Codec
	re := regexp.MustCompile(`^\s([D.])([E.])A.{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:([^\)]+)\))?$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		c := Codec{Id: m[3], Name: strings.TrimSpace(m[4])}
		if m[1] == "D" {
			if len(m[5]) == 0 {
				c.Decoders = []string{m[3]}
			} else {
				c.Decoders = strings.Fields(m[5])
			}
		}
		if m[2] == "E" {
			if len(m[6]) == 0 {
				c.Encoders = []string{m[3]}
			} else {
				c.Encoders = strings.Fields(m[6])
			}
		}
		codecs = append(codecs, c)
	}
	return codecs
}
