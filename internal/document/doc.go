// Package document renders extracted text into output files and pulls text
// out of EPUB books.
package document
