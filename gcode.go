package main

import (
	"bufio"
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// slicerScanLines bounds how far into the file the slicer banner is looked for.
const slicerScanLines = 64

var reGeneratedBy = regexp.MustCompile(`(?i)^generated (?:by|with) (.+?)(?: on \d.*)?$`)

// forEachLine calls fn for every line of data with its 1-based number.
// Line terminators (LF or CRLF) are not included; data is never modified.
func forEachLine(data []byte, fn func(lineNum int, line []byte) bool) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if !fn(lineNum, scanner.Bytes()) {
			break
		}
	}
	return scanner.Err()
}

// commentText returns the text after the leading ';' of a comment line.
func commentText(line []byte) (string, bool) {
	line = bytes.TrimLeft(line, " \t")
	if len(line) == 0 || line[0] != ';' {
		return "", false
	}
	return strings.TrimSpace(string(line[1:])), true
}

// DetectSlicer returns the slicer banner ("OrcaSlicer 2.2.0") or "".
func DetectSlicer(gcode []byte) string {
	var slicer string
	forEachLine(gcode, func(lineNum int, line []byte) bool {
		if lineNum > slicerScanLines {
			return false
		}
		text, ok := commentText(line)
		if !ok {
			return true
		}
		if m := reGeneratedBy.FindStringSubmatch(text); m != nil {
			slicer = strings.TrimSpace(m[1])
			return false
		}
		return true
	})
	return slicer
}

// ReadGCode loads an input file. A file that already carries the profile's
// GX header (converted in place by an earlier run) is unwrapped to its
// G-code body, so converting it again reproduces the same output.
func ReadGCode(path string, profile *Profile) (body []byte, unwrapped bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, newConvertError(InputReadError, path, 0, err)
	}
	if len(profile.Magic) == 0 || !bytes.HasPrefix(data, []byte(profile.Magic)) {
		return data, false, nil
	}

	hdr, err := ParseHeader(data, profile)
	if err != nil {
		return nil, false, newConvertError(InputReadError, path, 0, errors.Wrap(err, "input looks like a GX file but its header is invalid"))
	}
	return data[hdr.BodyOffset:], true, nil
}
