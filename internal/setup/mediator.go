package setup

import (
	"github.com/The127/ioc"
	"github.com/The127/mediatr"
	"github.com/the127/chunkyard/internal/commands"
	"github.com/the127/chunkyard/internal/queries"
)

func Mediator(dc *ioc.DependencyCollection) {
	mediator := mediatr.NewMediator()

	mediatr.RegisterHandler(mediator, commands.HandleInitiateUpload)
	mediatr.RegisterHandler(mediator, commands.HandleUploadPart)
	mediatr.RegisterHandler(mediator, commands.HandleCompleteUpload)
	mediatr.RegisterHandler(mediator, commands.HandleAbortUpload)

	mediatr.RegisterHandler(mediator, queries.HandleGetUpload)
	mediatr.RegisterHandler(mediator, queries.HandleListUploads)
	mediatr.RegisterHandler(mediator, queries.HandleListUploadParts)

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) mediatr.Mediator {
		return mediator
	})
}
