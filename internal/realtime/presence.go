package realtime

import "sync"

// Identity is what a connection claimed during authentication. Guests carry
// no user id; admins are flagged so delivery can tell the two sides apart.
type Identity struct {
	UserID  *string
	IsAdmin bool
}

type client struct {
	sender   Sender
	identity Identity
	authed   bool
	rooms    map[string]struct{}
}

// Presence tracks live connections, their claimed identities and their
// conversation subscriptions. It is the single answer to "who is reachable
// right now"; durable notification fallback keys off its negative answers.
type Presence struct {
	mu      sync.RWMutex
	clients map[string]*client            // connID -> client
	rooms   map[string]map[string]Sender  // conversationID -> connID -> sender
	users   map[string]map[string]struct{} // userID -> set of connIDs
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]Sender),
		users:   make(map[string]map[string]struct{}),
	}
}

// Register tracks a new unauthenticated connection.
func (p *Presence) Register(sender Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[sender.ID()] = &client{
		sender: sender,
		rooms:  make(map[string]struct{}),
	}
}

// Authenticate records the connection's claimed identity.
func (p *Presence) Authenticate(connID string, identity Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cl, ok := p.clients[connID]
	if !ok {
		return false
	}
	if cl.identity.UserID != nil {
		p.dropUserIndexLocked(*cl.identity.UserID, connID)
	}
	cl.identity = identity
	cl.authed = true
	if identity.UserID != nil {
		conns := p.users[*identity.UserID]
		if conns == nil {
			conns = make(map[string]struct{})
			p.users[*identity.UserID] = conns
		}
		conns[connID] = struct{}{}
	}
	return true
}

// IdentityOf returns the connection's identity and whether it authenticated.
func (p *Presence) IdentityOf(connID string) (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cl, ok := p.clients[connID]
	if !ok {
		return Identity{}, false
	}
	return cl.identity, cl.authed
}

// Subscribe adds the connection to a conversation room. Returns false for
// untracked connections.
func (p *Presence) Subscribe(connID, conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cl, ok := p.clients[connID]
	if !ok {
		return false
	}
	room := p.rooms[conversationID]
	if room == nil {
		room = make(map[string]Sender)
		p.rooms[conversationID] = room
	}
	room[connID] = cl.sender
	cl.rooms[conversationID] = struct{}{}
	return true
}

// Unsubscribe removes the connection from a conversation room.
func (p *Presence) Unsubscribe(connID, conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaveLocked(connID, conversationID)
}

// Unregister drops the connection, its subscriptions and its user index.
func (p *Presence) Unregister(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cl, ok := p.clients[connID]
	if !ok {
		return
	}
	for conversationID := range cl.rooms {
		p.leaveLocked(connID, conversationID)
	}
	if cl.identity.UserID != nil {
		p.dropUserIndexLocked(*cl.identity.UserID, connID)
	}
	delete(p.clients, connID)
}

// Broadcast delivers payload to every member of the named rooms, each
// connection at most once. Returns the number of successful deliveries.
func (p *Presence) Broadcast(conversationIDs []string, payload []byte) int {
	p.mu.RLock()
	targets := make(map[string]Sender)
	for _, conversationID := range conversationIDs {
		for connID, sender := range p.rooms[conversationID] {
			targets[connID] = sender
		}
	}
	p.mu.RUnlock()

	delivered := 0
	for _, sender := range targets {
		if err := sender.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// BroadcastExcept is Broadcast minus one connection, for frames the sender
// should not see echoed, like typing indicators.
func (p *Presence) BroadcastExcept(conversationIDs []string, payload []byte, exceptConnID string) int {
	p.mu.RLock()
	targets := make(map[string]Sender)
	for _, conversationID := range conversationIDs {
		for connID, sender := range p.rooms[conversationID] {
			if connID == exceptConnID {
				continue
			}
			targets[connID] = sender
		}
	}
	p.mu.RUnlock()

	delivered := 0
	for _, sender := range targets {
		if err := sender.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// SubscribedAdminIDs returns admin user ids with a live subscription to any
// of the named rooms. Delivery excludes these from offline notification.
func (p *Presence) SubscribedAdminIDs(conversationIDs []string) map[string]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	admins := make(map[string]struct{})
	for _, conversationID := range conversationIDs {
		for connID := range p.rooms[conversationID] {
			cl, ok := p.clients[connID]
			if !ok || !cl.identity.IsAdmin || cl.identity.UserID == nil {
				continue
			}
			admins[*cl.identity.UserID] = struct{}{}
		}
	}
	return admins
}

// IsUserSubscribed reports whether any of the user's connections is
// subscribed to one of the named rooms.
func (p *Presence) IsUserSubscribed(userID string, conversationIDs []string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conns, ok := p.users[userID]
	if !ok {
		return false
	}
	for _, conversationID := range conversationIDs {
		for connID := range p.rooms[conversationID] {
			if _, live := conns[connID]; live {
				return true
			}
		}
	}
	return false
}

// CloseAll unregisters everything and returns the senders so the caller can
// close them outside the lock.
func (p *Presence) CloseAll() []Sender {
	p.mu.Lock()
	defer p.mu.Unlock()
	senders := make([]Sender, 0, len(p.clients))
	for _, cl := range p.clients {
		senders = append(senders, cl.sender)
	}
	p.clients = make(map[string]*client)
	p.rooms = make(map[string]map[string]Sender)
	p.users = make(map[string]map[string]struct{})
	return senders
}

func (p *Presence) leaveLocked(connID, conversationID string) {
	room := p.rooms[conversationID]
	if room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(p.rooms, conversationID)
		}
	}
	if cl, ok := p.clients[connID]; ok {
		delete(cl.rooms, conversationID)
	}
}

func (p *Presence) dropUserIndexLocked(userID, connID string) {
	conns := p.users[userID]
	if conns == nil {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.users, userID)
	}
}
