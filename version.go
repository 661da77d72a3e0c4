package sequent

// Version is the library version, stamped on releases.
const Version = "0.1.0"
