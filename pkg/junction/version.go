package junction

// Version is the release version of this module.
const Version = "0.4.0"

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "junction-go/" + Version
