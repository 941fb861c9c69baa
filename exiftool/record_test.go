package exiftool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRecord() Record {
	return Record{
		"SourceFile":            "photos/a.jpg",
		"EXIF:Make":             "Canon",
		"EXIF:ISO":              float64(200),
		"EXIF:ExposureTime":     "0.004",
		"Composite:GPSPosition": "48.85 2.29",
		"XMP:Subject":           []any{"paris", "tower"},
		"File:FileSize":         float64(2048.5),
	}
}

func TestRecord_SourceFile(t *testing.T) {
	assert.Equal(t, "photos/a.jpg", testRecord().SourceFile())
	assert.Empty(t, Record{}.SourceFile())
	assert.Empty(t, Record{"SourceFile": 12}.SourceFile())
}

func TestRecord_Lookup(t *testing.T) {
	r := testRecord()

	tests := []struct {
		name    string
		tag     string
		wantKey string
		wantVal any
		wantOK  bool
	}{
		{"exact", "EXIF:Make", "EXIF:Make", "Canon", true},
		{"unqualified", "ISO", "EXIF:ISO", float64(200), true},
		{"source file", "SourceFile", "SourceFile", "photos/a.jpg", true},
		{"missing qualified", "EXIF:Model", "", nil, false},
		{"missing unqualified", "Model", "", nil, false},
		{"wrong group", "XMP:Make", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, val, ok := r.Lookup(tt.tag)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantVal, val)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestRecord_String(t *testing.T) {
	r := testRecord()
	assert.Equal(t, "Canon", r.String("EXIF:Make"))
	assert.Equal(t, "200", r.String("EXIF:ISO"))
	assert.Equal(t, "2048.5", r.String("File:FileSize"))
	assert.Equal(t, "[paris tower]", r.String("XMP:Subject"))
	assert.Equal(t, "", r.String("EXIF:Model"))
}

func TestRecord_Float(t *testing.T) {
	r := testRecord()

	v, ok := r.Float("EXIF:ISO")
	assert.True(t, ok)
	assert.Equal(t, float64(200), v)

	v, ok = r.Float("EXIF:ExposureTime")
	assert.True(t, ok)
	assert.InDelta(t, 0.004, v, 1e-12)

	_, ok = r.Float("EXIF:Make")
	assert.False(t, ok)
	_, ok = r.Float("EXIF:Model")
	assert.False(t, ok)
}

func TestRecord_Group(t *testing.T) {
	exif := testRecord().Group("EXIF")
	assert.Equal(t, Record{
		"Make":         "Canon",
		"ISO":          float64(200),
		"ExposureTime": "0.004",
	}, exif)
	assert.Empty(t, testRecord().Group("MakerNotes"))
}

func TestRecord_Clone(t *testing.T) {
	r := testRecord()
	c := r.Clone()
	c["EXIF:Make"] = "Nikon"
	assert.Equal(t, "Canon", r["EXIF:Make"])
}

func TestSplitTag(t *testing.T) {
	tests := []struct {
		in        string
		wantGroup string
		wantName  string
	}{
		{"EXIF:Make", "EXIF", "Make"},
		{"XMP-dc:Title", "XMP-dc", "Title"},
		{"EXIF:IFD0:Make", "EXIF:IFD0", "Make"},
		{"SourceFile", "", "SourceFile"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			group, name := SplitTag(tt.in)
			assert.Equal(t, tt.wantGroup, group)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
