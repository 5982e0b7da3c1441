/*
Package api serves Burrow's read-only status API over HTTP.

Routes are mounted under /api/v1 on a chi router:

	GET /fleet                      nodes with total, used and free capacity
	GET /fleet/{nodeID}/processes   processes running on one node
	GET /targets                    targets with their current phase
	GET /account                    money, skill and port openers
	GET /engines/{engine}/actions   actionability and priority per action
	GET /events                     the last 100 broker events

Nothing in the API changes the fleet. When a secret is configured every
request needs an HS256 bearer token issued by IssueToken (see the
"burrow token" command); without one the API is open and should only
listen on loopback.
*/
package api
