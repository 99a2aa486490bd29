package command

// registerPersistenceCommands grounds SAVE/BGSAVE/SHUTDOWN on the
// teacher's handler_persistence.go (Save/BGSave), which already uses the
// "snapshot the store, run in a goroutine" pattern spec §9 sanctions as
// the fork() replacement.
func registerPersistenceCommands() {
	register(&Command{Name: "save", Arity: 1, Handler: cmdSave})
	register(&Command{Name: "bgsave", Arity: 1, Handler: cmdBGSave})
	register(&Command{Name: "shutdown", Arity: 1, Handler: cmdShutdown})
}

// cmdSave: "foreground snapshot; reply OK or ERR."
func cmdSave(ctx *Context) []byte {
	if err := ctx.Env.Save(); err != nil {
		return replyErrf("%v", err)
	}
	return replyOK()
}

// cmdBGSave: "start background snapshot; error if one is already in
// progress."
func cmdBGSave(ctx *Context) []byte {
	if err := ctx.Env.BGSave(); err != nil {
		return replyErrf("%v", err)
	}
	return replyOK()
}

// cmdShutdown: "foreground save, stop the event loop on success; report
// failure otherwise."
func cmdShutdown(ctx *Context) []byte {
	if err := ctx.Env.Save(); err != nil {
		return replyErrf("%v", err)
	}
	*ctx.Quit = true
	ctx.Env.StopServer()
	return replyOK()
}
