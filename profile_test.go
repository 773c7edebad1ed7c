package main

import (
	"path/filepath"
	"reflect"
	"testing"
)

const customProfileYAML = `name: test-rgb565
description: two RGB565 previews, big endian
magic: GXT1
byte_order: big
extension: .gxt
resample: bilinear
previews:
  - {width: 16, height: 12, format: rgb565le}
  - {width: 40, height: 30, format: rgb565be}
header:
  - {name: magic, type: bytes, source: magic}
  - {name: version, type: u8, source: const, value: 3}
  - {name: header_size, type: u16, source: header_size}
  - {name: icon_offset, type: u32, source: bitmap_offset, index: 0}
  - {name: icon_length, type: u32, source: bitmap_length, index: 0}
  - {name: detail_offset, type: u32, source: bitmap_offset, index: 1}
  - {name: detail_length, type: u32, source: bitmap_length, index: 1}
  - {name: body_offset, type: u32, source: body_offset}
  - {name: print_time, type: u32, source: print_time}
  - {name: filament, type: u32, source: filament, scale: 10}
  - {name: bed_temp, type: u16, source: bed_temp}
  - {name: nozzle_temp, type: u16, source: nozzle_temp}
  - {name: print_speed, type: u16, source: print_speed, scale: 10}
`

func TestLoadProfile(t *testing.T) {
	path := writeTemp(t, "custom.yaml", []byte(customProfileYAML))
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := twoPreviewProfile()
	want.Description = "two RGB565 previews, big endian"
	want.Resample = ResampleBilinear
	if !reflect.DeepEqual(p, want) {
		t.Errorf("expected %+v, got %+v", want, p)
	}
	if p.OutputExtension() != ".gxt" {
		t.Errorf("expected .gxt, got %q", p.OutputExtension())
	}
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assertKind(t, err, InvalidProfile)

	_, err = LoadProfile(writeTemp(t, "bad.yaml", []byte("name: [unterminated")))
	assertKind(t, err, InvalidProfile)
}

func TestBuiltinProfilesValidate(t *testing.T) {
	names := ProfileNames()
	if !reflect.DeepEqual(names, []string{"flashforge", "flashforge-dual"}) {
		t.Errorf("unexpected built-in profiles %v", names)
	}
	for _, name := range names {
		p, err := LookupProfile(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestLookupProfileCopies(t *testing.T) {
	a := flashforge(t)
	a.Header[0].Name = "changed"
	b := flashforge(t)
	if b.Header[0].Name != "magic" {
		t.Error("built-in profiles share state between lookups")
	}
}

func TestLookupProfileUnknown(t *testing.T) {
	_, err := LookupProfile("prusa")
	assertKind(t, err, InvalidProfile)
}

func TestProfileValidate(t *testing.T) {
	tests := map[string]func(p *Profile){
		"no name":           func(p *Profile) { p.Name = "" },
		"byte order":        func(p *Profile) { p.ByteOrder = "middle" },
		"resample":          func(p *Profile) { p.Resample = "lanczos9" },
		"preview size":      func(p *Profile) { p.Previews[0].Width = 0 },
		"preview format":    func(p *Profile) { p.Previews[1].Format = "png" },
		"empty header":      func(p *Profile) { p.Header = nil },
		"unknown type":      func(p *Profile) { p.Header[1].Type = "u64" },
		"unknown source":    func(p *Profile) { p.Header[8].Source = "weather" },
		"negative scale":    func(p *Profile) { p.Header[9].Scale = -1 },
		"bitmap index":      func(p *Profile) { p.Header[3].Index = 2 },
		"magic not first":   func(p *Profile) { p.Header[0], p.Header[1] = p.Header[1], p.Header[0] },
		"empty magic":       func(p *Profile) { p.Magic = "" },
		"bytes not magic":   func(p *Profile) { p.Header[2].Type = TypeBytes },
		"no magic field":    func(p *Profile) { p.Header = p.Header[1:] },
		"magic type":        func(p *Profile) { p.Header[0].Type = TypeU32 },
		"huge layout":       func(p *Profile) { p.Previews[1].Width, p.Previews[1].Height = 1<<16, 1<<16 },
		"negative index":    func(p *Profile) { p.Header[4].Index = -1 },
		"unknown metadata":  func(p *Profile) { p.Header[10].Source = "fan_speed" },
		"second magic slot": func(p *Profile) { p.Header[2].Source = SourceMagic },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := twoPreviewProfile()
			mutate(p)
			assertKind(t, p.Validate(), InvalidProfile)
		})
	}
}

func TestProfileDefaults(t *testing.T) {
	p := twoPreviewProfile()
	p.Extension = ""
	p.ByteOrder = ""
	if p.OutputExtension() != ".gx" {
		t.Errorf("expected .gx by default, got %q", p.OutputExtension())
	}
	if err := p.Validate(); err != nil {
		t.Errorf("little endian default should validate: %v", err)
	}
}
