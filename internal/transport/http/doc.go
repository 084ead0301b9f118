// Package http implements the HTTP handlers the desktop shell calls. Handlers
// stay thin: they bind and validate the request, call one service method and
// render the result with go-chi/render.
//
// Verification and gating outcomes of the activation endpoints are reported
// in the body as {success, message}; everything else that fails is rendered
// as RFC 7807 problem details by errors.ErrorHandler.
//
// Routes:
//
//	GET    /api/license/status
//	GET    /api/license/machine-code
//	POST   /api/license/activate
//	DELETE /api/license/deactivate
//	GET    /api/license/quota
//	POST   /api/convert/file
//	GET    /api/convert/download/{filename}
//	GET    /api/system/health
//	GET    /api/system/live
//	GET    /api/system/info
package http
