// Package chat is the conversation orchestrator. Each turn appends the user
// message to the container's session, builds a system prompt from the
// built-in instructions and the container's current file tree, asks the
// configured backend for a reply and stores it.
//
//	svc := chat.New(b, inmemory.New(), filetree.NewDirSource("/srv/{container}"),
//	    chat.WithObserver(slogobs.New()),
//	)
//	result, err := svc.SendMessage(ctx, "c1", "add a button", nil)
//
// Turns for the same container should not overlap; concurrent turns
// interleave their messages in the transcript.
package chat
