package types

// Version is the canonical project version.
// The CLI, the chunk wire format and the journal record format share this
// version per the lockstep versioning policy.
const Version = "0.3.0"

// WireVersion is the chunk frame and journal record format version.
const WireVersion = Version
