// Package ffprobe shells out to ffprobe and exposes the handful of container
// attributes the NFO descriptor needs: duration, resolution, video codec,
// and bitrate.
package ffprobe
