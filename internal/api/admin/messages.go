// messages.go holds the user-facing error and status messages returned by the admin
// handlers, in the languages the platform serves (Portuguese and English).
package admin

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// Message keys
const (
	msgAuditLogsFetchFailed = "audit_logs.fetch_failed"
	msgCleanupCompleted     = "audit_logs.cleanup_completed"
	msgCleanupFailed        = "audit_logs.cleanup_failed"
	msgInvalidCredentials   = "auth.invalid_credentials"
	msgLoggedOut            = "auth.logged_out"
	msgInternalError        = "errors.internal"
	msgInvalidRequest       = "errors.invalid_request"

	msgUsersListFailed  = "users.list_failed"
	msgUserFetchFailed  = "users.fetch_failed"
	msgUserNotFound     = "users.not_found"
	msgUserCreateFailed = "users.create_failed"
	msgUserUpdateFailed = "users.update_failed"
	msgUserDeleteFailed = "users.delete_failed"
	msgUserDeleted      = "users.deleted"
	msgInvalidRole      = "users.invalid_role"
	msgEmailInUse       = "users.email_in_use"
	msgWeakPassword     = "users.weak_password"
	msgCannotDeleteSelf = "users.cannot_delete_self"
)

// Portuguese is the platform default; it comes first so it wins when no
// Accept-Language header is sent.
var supportedLanguages = []language.Tag{
	language.Portuguese,
	language.English,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

var messages = map[string]map[string]string{
	"pt": {
		msgAuditLogsFetchFailed: "Erro ao buscar logs de auditoria",
		msgCleanupCompleted:     "Limpeza de logs concluída com sucesso",
		msgCleanupFailed:        "Erro ao executar limpeza de logs",
		msgInvalidCredentials:   "Credenciais inválidas",
		msgLoggedOut:            "Sessão terminada com sucesso",
		msgInternalError:        "Erro interno do servidor",
		msgInvalidRequest:       "Pedido inválido",
		msgUsersListFailed:      "Erro ao listar utilizadores",
		msgUserFetchFailed:      "Erro ao obter utilizador",
		msgUserNotFound:         "Utilizador não encontrado",
		msgUserCreateFailed:     "Erro ao criar utilizador",
		msgUserUpdateFailed:     "Erro ao atualizar utilizador",
		msgUserDeleteFailed:     "Erro ao eliminar utilizador",
		msgUserDeleted:          "Utilizador eliminado com sucesso",
		msgInvalidRole:          "Perfil inválido",
		msgEmailInUse:           "Email já está em uso",
		msgWeakPassword:         "A palavra-passe deve ter pelo menos %d caracteres",
		msgCannotDeleteSelf:     "Não pode eliminar a sua própria conta",
	},
	"en": {
		msgAuditLogsFetchFailed: "Failed to fetch audit logs",
		msgCleanupCompleted:     "Log cleanup completed successfully",
		msgCleanupFailed:        "Failed to run log cleanup",
		msgInvalidCredentials:   "Invalid credentials",
		msgLoggedOut:            "Logged out successfully",
		msgInternalError:        "Internal server error",
		msgInvalidRequest:       "Invalid request",
		msgUsersListFailed:      "Failed to list users",
		msgUserFetchFailed:      "Failed to retrieve user",
		msgUserNotFound:         "User not found",
		msgUserCreateFailed:     "Failed to create user",
		msgUserUpdateFailed:     "Failed to update user",
		msgUserDeleteFailed:     "Failed to delete user",
		msgUserDeleted:          "User deleted successfully",
		msgInvalidRole:          "Invalid role",
		msgEmailInUse:           "Email already in use",
		msgWeakPassword:         "Password must be at least %d characters",
		msgCannotDeleteSelf:     "Cannot delete your own account",
	},
}

// requestLanguage returns the base language ("pt" or "en") best matching the
// request's Accept-Language header.
func requestLanguage(c *gin.Context) string {
	tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return "pt"
	}
	_, idx, _ := languageMatcher.Match(tags...)
	base, _ := supportedLanguages[idx].Base()
	return base.String()
}

// translate returns the message for key in the request's language
func translate(c *gin.Context, key string) string {
	if msg, ok := messages[requestLanguage(c)][key]; ok {
		return msg
	}
	return messages["pt"][key]
}
