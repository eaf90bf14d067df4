/*
	Project: Soutenances - EST Béni Mellal internship defense scheduling portal
	Target: administrators, supervisors (encadrants) and students of the school

	The stages REST API owns every planification, slot and account; this module only renders them:
	- apps/portal: server-rendered web portal (echo), one screen per role, live toasts over websocket
	- apps/portalctl: operator CLI (login, listings, exports, migrations)
	- storage: optional notification history (postgres), in memory otherwise
*/
package soutenances
