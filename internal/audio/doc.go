// Package audio turns recorded sets into mono waveforms for analysis.
// WAV and MP3 inputs are decoded with beep, resampled to the analysis rate
// and downmixed by averaging channels. EncodeWAV goes the other way and is
// used when a decoded waveform has to be handed to a remote service.
package audio
