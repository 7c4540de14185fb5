package recorder

import "fmt"

// relayScript returns the JavaScript injected into the recorded page. The
// script is a thin relay: it queues raw events addressed by element index
// paths and serializes periodic geometry-annotated snapshots. All selector
// synthesis, extraction and pattern detection happens on the Go side.
func relayScript(highlightElements bool) string {
	return fmt.Sprintf(relayScriptTemplate, highlightElements)
}

const relayScriptTemplate = `
(function() {
	if (window.__pageflowRelay) return;

	var SNAPSHOT_INTERVAL_MS = 2000;
	var MAX_ANNOTATED = 3000;
	var OVERLAY_ID = 'pageflow-highlight-overlay';
	var highlightEnabled = %t;

	window.__pageflowRelay = {
		events: [],
		lastSnapshotAt: 0,
		lastURL: '',

		push: function(event) {
			this.events.push(event);
			if (this.events.length > 500) {
				this.events.shift();
			}
		},

		pathOf: function(element) {
			var path = [];
			var node = element;
			while (node && node.parentElement) {
				var siblings = node.parentElement.children;
				for (var i = 0; i < siblings.length; i++) {
					if (siblings[i] === node) {
						path.unshift(i);
						break;
					}
				}
				node = node.parentElement;
			}
			return path;
		},

		annotate: function() {
			var all = document.getElementsByTagName('*');
			var limit = Math.min(all.length, MAX_ANNOTATED);
			for (var i = 0; i < limit; i++) {
				var rect = all[i].getBoundingClientRect();
				all[i].setAttribute('data-pf-rect',
					Math.round(rect.left) + ',' + Math.round(rect.top) + ',' +
					Math.round(rect.width) + ',' + Math.round(rect.height));
			}
		},

		snapshot: function() {
			this.annotate();
			this.lastSnapshotAt = Date.now();
			this.lastURL = location.href;
			return {
				html: document.documentElement.outerHTML,
				url: location.href,
				title: document.title,
				scrollX: window.scrollX,
				scrollY: window.scrollY,
				viewportWidth: window.innerWidth,
				viewportHeight: window.innerHeight,
				documentHeight: document.documentElement.scrollHeight
			};
		},

		drain: function() {
			var events = this.events;
			this.events = [];
			var snapshot = null;
			if (Date.now() - this.lastSnapshotAt > SNAPSHOT_INTERVAL_MS ||
					location.href !== this.lastURL) {
				snapshot = this.snapshot();
			}
			return { events: events, snapshot: snapshot };
		}
	};

	function overlay() {
		var el = document.getElementById(OVERLAY_ID);
		if (!el) {
			el = document.createElement('div');
			el.id = OVERLAY_ID;
			el.style.cssText = 'position:absolute;pointer-events:none;' +
				'border:2px solid #4a90d9;background:rgba(74,144,217,0.1);' +
				'z-index:2147483647;display:none;';
			document.body.appendChild(el);
		}
		return el;
	}

	var lastHover = null;
	document.addEventListener('mousemove', function(event) {
		if (!highlightEnabled || !event.isTrusted) return;
		var target = event.target;
		if (target === lastHover || target.id === OVERLAY_ID) return;
		lastHover = target;
		var box = overlay();
		var rect = target.getBoundingClientRect();
		box.style.left = (rect.left + window.scrollX) + 'px';
		box.style.top = (rect.top + window.scrollY) + 'px';
		box.style.width = rect.width + 'px';
		box.style.height = rect.height + 'px';
		box.style.display = 'block';
	}, true);

	document.addEventListener('click', function(event) {
		if (!event.isTrusted || event.target.id === OVERLAY_ID) return;
		window.__pageflowRelay.push({
			kind: 'click',
			path: window.__pageflowRelay.pathOf(event.target),
			x: event.pageX,
			y: event.pageY
		});
	}, true);

	function controlEvent(kind, event) {
		if (!event.isTrusted || !event.target.tagName) return;
		var tag = event.target.tagName.toLowerCase();
		if (tag !== 'input' && tag !== 'select' && tag !== 'textarea') return;
		var entry = {
			kind: kind,
			path: window.__pageflowRelay.pathOf(event.target)
		};
		if (event.target.type === 'password') {
			// Raw passwords never leave the page; the engine records a mask.
			entry.value = '';
		} else if (event.target.type === 'file') {
			entry.fileCount = event.target.files ? event.target.files.length : 0;
		} else if (event.target.type === 'checkbox' || event.target.type === 'radio') {
			entry.value = event.target.checked ? 'checked' : 'unchecked';
		} else {
			entry.value = event.target.value;
		}
		window.__pageflowRelay.push(entry);
	}

	document.addEventListener('input', function(event) { controlEvent('input', event); }, true);
	document.addEventListener('change', function(event) { controlEvent('change', event); }, true);

	document.addEventListener('scroll', function(event) {
		if (!event.isTrusted) return;
		window.__pageflowRelay.push({ kind: 'scroll', path: [] });
	}, true);

	console.log('PageFlow relay initialized');
})();
`
