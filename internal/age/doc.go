// Package age drives the external age binary for decryption and
// encryption. agedit never implements the file format itself; it only
// arranges the subprocess calls so that plaintext stays off disk (stdout
// and stdin pipes) and a failed encrypt can never damage the on-disk
// secret (temp file plus rename).
package age
