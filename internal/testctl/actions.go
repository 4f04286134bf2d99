package testctl

// Indirection layer to allow stubbing in tests

var (
	fnRunGoTests  = runGoTests
	fnRunE2E      = runE2ETests
	fnRunLive     = runLiveSmoke
	fnGenNetwork  = genNetwork
	fnHasNetworks = hasHostNetworks
)
