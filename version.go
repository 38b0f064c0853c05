package wool

// Version is overridden at build time with -ldflags "-X github.com/lyramakesmusic/wool.Version=...".
var Version = "0.1.0"
