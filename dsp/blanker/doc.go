// Package blanker suppresses short impulse noise (ignition pulses,
// electric-fence clicks) in a live audio stream.
//
// Two stages are provided. Blanker works purely in the time domain: a
// running average of absolute sample levels sets the noise floor, and any
// sample far enough above it opens a short suppression window. SpectralBlanker
// adds a classification gate: before committing to suppression it measures
// the spectral flatness of a short windowed history and only blanks pulses
// whose energy is broadband, leaving narrowband tonal or speech transients
// untouched.
//
// Both stages are allocation-free after construction and designed to be
// driven once per audio callback.
package blanker
