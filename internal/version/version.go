package version

// Version is the current release of wiki-pathfinder
const Version = "0.1.0"
