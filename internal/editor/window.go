package editor

// Window receives the chrome updates and pushed events for the window that
// issued a request.
type Window interface {
	SetTitle(title string)
	SetRepresentedFilename(path string)
	SetDocumentEdited(edited bool)
	FileOpened(content, path string)
}
