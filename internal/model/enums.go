package model

// MediaKind distinguishes the two media item types a playlist can hold.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

var ValidMediaKinds = []MediaKind{MediaKindAudio, MediaKindVideo}

// Operation identifies one of the long-running operation kinds that
// report percentage progress to clients.
type Operation string

const (
	OperationFetching     Operation = "fetching"
	OperationPackaging    Operation = "packaging"
	OperationAudioExtract Operation = "audio-extract"
)
