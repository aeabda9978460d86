package enginelink

// Message type names shared with the engine. Requests sent by the front end
// expect exactly one response of the paired response type; the channel
// correlates by sequence id, so these names only select handlers and
// subscriptions, never correlation.
const (
	TypeGetApplicationVersionRequest  = "GetApplicationVersionRequest"
	TypeGetApplicationVersionResponse = "GetApplicationVersionResponse"

	TypeGetMediaItemsRequest  = "GetMediaItemsRequest"
	TypeGetMediaItemsResponse = "GetMediaItemsResponse"

	TypeGetMediaDetailsRequest  = "GetMediaDetailsRequest"
	TypeGetMediaDetailsResponse = "GetMediaDetailsResponse"

	TypeGetPlayerStateRequest  = "GetPlayerStateRequest"
	TypeGetPlayerStateResponse = "GetPlayerStateResponse"

	TypePlayRequest  = "PlayRequest"
	TypePlayResponse = "PlayResponse"

	TypePlayerPauseRequest  = "PlayerPauseRequest"
	TypePlayerResumeRequest = "PlayerResumeRequest"
	TypePlayerStopRequest   = "PlayerStopRequest"
	TypePlayerSeekRequest   = "PlayerSeekRequest"

	// Sent by Close before teardown; the engine exits on receipt.
	TypeApplicationTerminationRequest = "ApplicationTerminationRequest"
)

// Event categories pushed by the engine without a preceding request.
// Subscribe with Channel.Subscribe; payload bodies are category-specific.
const (
	CategoryPlayerEvent      = "PlayerEvent"
	CategoryPlaylistEvent    = "PlaylistEvent"
	CategoryStreamEvent      = "StreamEvent"
	CategoryUpdateEvent      = "UpdateEvent"
	CategoryApplicationEvent = "ApplicationEvent"
)
