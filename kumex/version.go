package kumex

// Version is the SDK version reported in the User-Agent header
const Version = "1.0.1"

// UserAgent is sent with every request and cannot be overridden by callers
const UserAgent = "KuMex-Go-SDK/" + Version
