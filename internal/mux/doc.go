// Package mux registers uploaded videos with Mux Video and picks the playback
// id recorded on the video resource.
package mux
