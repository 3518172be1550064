package metadata

/** @brief Everything the renderer needs to produce one frame. */
type RenderPacket struct {
	/** @brief Seconds elapsed since the previous frame. */
	DeltaTime float64
	/** @brief Monotonic frame counter stamped by the frontend. */
	FrameNumber uint64
}
