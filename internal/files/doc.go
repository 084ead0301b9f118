// Package files provides the file system primitives shared by the durable
// records and the conversion pipeline: atomic whole-file rewrites, idempotent
// removal, and resolution of scratch and output locations under the
// configured directories.
//
// Example usage:
//
//	if err := files.WriteFileAtomic(path, data, 0600); err != nil {
//	    return err
//	}
//
//	m := files.NewManager(paths)
//	out, err := m.OutputPath("meeting.docx")
package files
