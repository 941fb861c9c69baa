// Package exiftool talks to Phil Harvey's exiftool running in batch mode.
//
// Launching exiftool costs far more than most queries, so a client starts
// one long-lived process with -stay_open and pipes successive command
// batches to it:
//
//	Go Client <--argument lines / output + {ready}--> exiftool -stay_open True -@ -
//
// # Wire Protocol
//
// A batch is written to stdin as one argument per line, terminated by
// -execute:
//
//	-j
//	a.jpg
//	-execute
//
// exiftool answers on stdout and prints {ready} when the batch is done.
// The client reads until the trimmed output ends with that sentinel and
// returns everything before it. Writing "-stay_open\nFalse\n" makes the
// process exit.
//
// The process is started with -common_args -G -n, so tag names are
// group-qualified ("EXIF:DateTimeOriginal") and values are machine
// readable.
//
// # Usage
//
// One-off query:
//
//	view, err := exiftool.Metadata(ctx, "a.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fm := view.(*exiftool.FileMetadata)
//	fmt.Println(fm.SourceFile(), fm.String("EXIF:DateTimeOriginal"))
//
// Several queries on one process:
//
//	et := exiftool.Batch()
//	err := et.Do(func(et *exiftool.ExifTool) error {
//	    view, err := et.Metadata(ctx, "a.jpg", "b.png", "photos/")
//	    if err != nil {
//	        return err
//	    }
//	    for fm, err := range view.Records(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(fm.SourceFile(), fm.String("EXIF:DateTimeOriginal"))
//	    }
//	    return nil
//	})
//
// # Limitations
//
// exiftool silently ignores arguments it does not understand, so a bad
// batch usually yields empty output rather than an error. Editing
// metadata is not supported yet; the Set, Delete and Write methods of
// views always return ErrNotImplemented.
package exiftool
