package exiftool

import (
	"context"
	"errors"
	"iter"
	"slices"
)

// View is the metadata of one or more files.
type View interface {
	// Records yields the metadata of each file, in the order exiftool
	// reports them.
	Records(ctx context.Context) iter.Seq2[*FileMetadata, error]

	// Values yields the value of one tag for each file.
	Values(ctx context.Context, tag string) iter.Seq2[FieldValue, error]

	Editor
}

// Editor is the mutation side of a view. Writing metadata is not
// supported yet: every method returns ErrNotImplemented.
type Editor interface {
	Set(tag string, value any) error
	Delete(tag string) error
	Write(ctx context.Context) error
}

// FieldValue is the value of one tag in one file. Present is false when
// the file has no such tag.
type FieldValue struct {
	SourceFile string
	Tag        string // key that matched, empty when absent
	Value      any
	Present    bool
}

func fieldValue(rec Record, tag string) FieldValue {
	key, v, ok := rec.Lookup(tag)
	return FieldValue{
		SourceFile: rec.SourceFile(),
		Tag:        key,
		Value:      v,
		Present:    ok,
	}
}

// FileMetadata is the read-only metadata of a single file.
type FileMetadata struct {
	rec Record
}

var (
	_ View = (*FileMetadata)(nil)
	_ View = (*MultiFileMetadata)(nil)
)

// NewFileMetadata wraps a record, such as one returned by ExecuteJSON, in
// a read-only view.
func NewFileMetadata(rec Record) *FileMetadata {
	return &FileMetadata{rec: rec}
}

// SourceFile returns the file this metadata describes.
func (f *FileMetadata) SourceFile() string { return f.rec.SourceFile() }

// Get returns the value of a qualified tag.
func (f *FileMetadata) Get(tag string) (any, bool) { return f.rec.Get(tag) }

// Lookup finds a tag by exact or unqualified name. See Record.Lookup.
func (f *FileMetadata) Lookup(tag string) (string, any, bool) { return f.rec.Lookup(tag) }

// String returns the value of tag as text, or "" when absent.
func (f *FileMetadata) String(tag string) string { return f.rec.String(tag) }

// Float returns a numeric tag value.
func (f *FileMetadata) Float(tag string) (float64, bool) { return f.rec.Float(tag) }

// Tags returns the tag names in sorted order.
func (f *FileMetadata) Tags() []string { return f.rec.Tags() }

// Len returns the number of tags, SourceFile included.
func (f *FileMetadata) Len() int { return len(f.rec) }

// Record returns a copy of the underlying record.
func (f *FileMetadata) Record() Record { return f.rec.Clone() }

// Records yields f itself.
func (f *FileMetadata) Records(ctx context.Context) iter.Seq2[*FileMetadata, error] {
	return func(yield func(*FileMetadata, error) bool) {
		yield(f, nil)
	}
}

// Values yields the value of tag in this file.
func (f *FileMetadata) Values(ctx context.Context, tag string) iter.Seq2[FieldValue, error] {
	return func(yield func(FieldValue, error) bool) {
		yield(fieldValue(f.rec, tag), nil)
	}
}

// Set always fails with ErrNotImplemented.
func (f *FileMetadata) Set(tag string, value any) error {
	return newError("set", ErrNotImplemented)
}

// Delete always fails with ErrNotImplemented.
func (f *FileMetadata) Delete(tag string) error {
	return newError("delete", ErrNotImplemented)
}

// Write always fails with ErrNotImplemented.
func (f *FileMetadata) Write(ctx context.Context) error {
	return newError("write", ErrNotImplemented)
}

// MultiFileMetadata is the metadata of several files, directories or
// patterns. Nothing is queried until it is iterated, and every iteration
// queries exiftool again.
//
// It borrows the client it was created from. If that client is running
// its process is reused; otherwise each iteration starts and terminates a
// private process.
type MultiFileMetadata struct {
	paths []string
	tool  *ExifTool
}

// Paths returns the paths the view was created with.
func (m *MultiFileMetadata) Paths() []string {
	return slices.Clone(m.paths)
}

// Records runs exiftool -r over the paths and yields one FileMetadata per
// file reported.
func (m *MultiFileMetadata) Records(ctx context.Context) iter.Seq2[*FileMetadata, error] {
	return func(yield func(*FileMetadata, error) bool) {
		for rec, err := range m.records(ctx, nil) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(NewFileMetadata(rec), nil) {
				return
			}
		}
	}
}

// Values runs exiftool -TAG -r over the paths and yields the value of tag
// for each file reported, with Present false where the tag is missing.
func (m *MultiFileMetadata) Values(ctx context.Context, tag string) iter.Seq2[FieldValue, error] {
	return func(yield func(FieldValue, error) bool) {
		if tag == "" {
			yield(FieldValue{}, newError("values", errors.New("tag is required")))
			return
		}
		for rec, err := range m.records(ctx, []string{"-" + tag}) {
			if err != nil {
				yield(FieldValue{}, err)
				return
			}
			if !yield(fieldValue(rec, tag), nil) {
				return
			}
		}
	}
}

// Collect runs Records and gathers the result.
func (m *MultiFileMetadata) Collect(ctx context.Context) ([]*FileMetadata, error) {
	var out []*FileMetadata
	for fm, err := range m.Records(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, fm)
	}
	return out, nil
}

// Set always fails with ErrNotImplemented.
func (m *MultiFileMetadata) Set(tag string, value any) error {
	return newError("set", ErrNotImplemented)
}

// Delete always fails with ErrNotImplemented.
func (m *MultiFileMetadata) Delete(tag string) error {
	return newError("delete", ErrNotImplemented)
}

// Write always fails with ErrNotImplemented.
func (m *MultiFileMetadata) Write(ctx context.Context) error {
	return newError("write", ErrNotImplemented)
}

func (m *MultiFileMetadata) records(ctx context.Context, extra []string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		args := append(slices.Clone(extra), recurseFlag)
		args = append(args, m.paths...)

		raw, err := m.tool.query(ctx, args)
		if err != nil {
			yield(nil, err)
			return
		}
		for rec, err := range DecodeJSONStream(raw) {
			if err != nil {
				yield(nil, newError("metadata", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
